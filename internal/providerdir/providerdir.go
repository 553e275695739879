// Package providerdir fetches the list of linkable identity providers and
// their OAuth scopes from the middleware's authorization endpoint. The list
// is never cached: scopes are operator-controlled and may change server-side,
// so every UI invocation re-fetches, trading latency for freshness.
package providerdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

// ScopeDescriptor is one grantable scope offered by a provider.
type ScopeDescriptor struct {
	Scope       string `json:"scope"`
	IconURL     string `json:"iconUrl"`
	Description string `json:"description"`
}

// Label returns the user-facing button label for the scope.
func (s ScopeDescriptor) Label() string {
	for key, label := range scopeLabels {
		if strings.Contains(s.Scope, key) {
			return label
		}
	}
	if s.Scope == "" {
		return "Scope"
	}
	return s.Scope
}

var scopeLabels = map[string]string{
	"drive":    "Drive Files",
	"calendar": "Calendar",
	"gmail":    "Gmail",
}

// ProviderDescriptor is a linkable identity/storage provider. Immutable for
// the duration of one UI interaction.
type ProviderDescriptor struct {
	Name                  string
	AuthorizationEndpoint string
	Scopes                []ScopeDescriptor
	RedirectURI           string
}

// Client talks to the middleware's provider directory.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a directory client. A nil httpClient gets a sensible
// default timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

type directoryEntry struct {
	Scopes []ScopeDescriptor `json:"scopes"`
}

// ListProviders fetches {baseEndpoint}/available-providers and maps each
// provider key to a descriptor whose name is the capitalized key. Fails with
// ErrDirectoryUnavailable on network error or non-success status, and with
// ErrMalformedDirectory when the response cannot be parsed.
func (c *Client) ListProviders(ctx context.Context, baseEndpoint, redirectURI string) ([]ProviderDescriptor, error) {
	logger := zerolog.Ctx(ctx)

	endpoint := strings.TrimSuffix(baseEndpoint, "/") + "/available-providers"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDirectoryUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Provider directory request failed")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("Provider directory returned non-success status")
		return nil, fmt.Errorf("%w: HTTP %d", apperrors.ErrDirectoryUnavailable, resp.StatusCode)
	}

	var directory map[string]directoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&directory); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDirectory, err)
	}

	startEndpoint := strings.TrimSuffix(baseEndpoint, "/") + "/start"

	providers := make([]ProviderDescriptor, 0, len(directory))
	for key, entry := range directory {
		providers = append(providers, ProviderDescriptor{
			Name:                  capitalize(key),
			AuthorizationEndpoint: startEndpoint,
			Scopes:                entry.Scopes,
			RedirectURI:           redirectURI,
		})
	}
	// Map iteration order is random; present providers deterministically.
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })

	logger.Debug().Int("count", len(providers)).Msg("Fetched provider directory")
	return providers, nil
}

// StartURL builds the authorization start URL the popup is navigated to:
// {authorizationEndpoint}?provider=&account_id=&scope=&redirect_uri=&state=.
func (p ProviderDescriptor) StartURL(accountID, scope, state string) string {
	q := url.Values{}
	q.Set("provider", strings.ToLower(p.Name))
	q.Set("account_id", accountID)
	q.Set("scope", scope)
	q.Set("redirect_uri", p.RedirectURI)
	q.Set("state", state)

	separator := "?"
	if strings.Contains(p.AuthorizationEndpoint, "?") {
		separator = "&"
	}
	return p.AuthorizationEndpoint + separator + q.Encode()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
