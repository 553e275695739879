package providerdir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

func TestListProviders(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"google": {"scopes": [
				{"scope": "https://www.googleapis.com/auth/drive", "iconUrl": "https://cdn/d.png", "description": "Drive access"},
				{"scope": "https://www.googleapis.com/auth/calendar", "iconUrl": "", "description": ""}
			]},
			"microsoft": {"scopes": []}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.Client())
	providers, err := client.ListProviders(context.Background(), server.URL, "https://erp.example.com/callback")
	require.NoError(t, err)
	require.Len(t, providers, 2)

	assert.Equal(t, "/available-providers", gotPath)

	google := providers[0]
	assert.Equal(t, "Google", google.Name)
	assert.Equal(t, server.URL+"/start", google.AuthorizationEndpoint)
	assert.Equal(t, "https://erp.example.com/callback", google.RedirectURI)
	require.Len(t, google.Scopes, 2)
	assert.Equal(t, "Drive Files", google.Scopes[0].Label())
	assert.Equal(t, "Calendar", google.Scopes[1].Label())

	assert.Equal(t, "Microsoft", providers[1].Name)
	assert.Empty(t, providers[1].Scopes)
}

func TestListProvidersSingleProviderSingleScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"google": {"scopes": [{"scope": "drive"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client())
	providers, err := client.ListProviders(context.Background(), server.URL, "")
	require.NoError(t, err)

	require.Len(t, providers, 1)
	assert.Equal(t, "Google", providers[0].Name)
	require.Len(t, providers[0].Scopes, 1)
	assert.Equal(t, "Drive Files", providers[0].Scopes[0].Label())
}

func TestListProvidersUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.Client())
			_, err := client.ListProviders(context.Background(), server.URL, "")
			assert.ErrorIs(t, err, apperrors.ErrDirectoryUnavailable)
		})
	}
}

func TestListProvidersNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(nil)
	_, err := client.ListProviders(context.Background(), server.URL, "")
	assert.ErrorIs(t, err, apperrors.ErrDirectoryUnavailable)
}

func TestListProvidersMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := NewClient(server.Client())
	_, err := client.ListProviders(context.Background(), server.URL, "")
	assert.ErrorIs(t, err, apperrors.ErrMalformedDirectory)
}

func TestScopeLabels(t *testing.T) {
	tests := []struct {
		scope string
		want  string
	}{
		{scope: "https://www.googleapis.com/auth/drive.file", want: "Drive Files"},
		{scope: "https://www.googleapis.com/auth/calendar.readonly", want: "Calendar"},
		{scope: "https://mail.google.com/gmail/", want: "Gmail"},
		{scope: "openid", want: "openid"},
		{scope: "", want: "Scope"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeDescriptor{Scope: tt.scope}.Label())
		})
	}
}

func TestStartURL(t *testing.T) {
	p := ProviderDescriptor{
		Name:                  "Google",
		AuthorizationEndpoint: "https://middleware.example.com/start",
		RedirectURI:           "https://erp.example.com/web/LinkAccount.html",
	}

	raw := p.StartURL("etendo_123", "https://www.googleapis.com/auth/drive", "c3RhdGU")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "google", q.Get("provider"))
	assert.Equal(t, "etendo_123", q.Get("account_id"))
	assert.Equal(t, "https://www.googleapis.com/auth/drive", q.Get("scope"))
	assert.Equal(t, "https://erp.example.com/web/LinkAccount.html", q.Get("redirect_uri"))
	assert.Equal(t, "c3RhdGU", q.Get("state"))
}

func TestStartURLEndpointWithQuery(t *testing.T) {
	p := ProviderDescriptor{Name: "Google", AuthorizationEndpoint: "https://mw.example.com/start?tenant=a"}

	raw := p.StartURL("acct", "drive", "s")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "a", u.Query().Get("tenant"))
	assert.Equal(t, "s", u.Query().Get("state"))
}
