package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sso.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileParameterStore_GetConfig(t *testing.T) {
	path := writeConfigFile(t, `
sso.middleware.url: https://middleware.example.com
sso.auth.type: Middleware
sso.middleware.account.id: etendo_123
sso.allowed.providers: google, microsoft
`)

	store, err := NewFileParameterStore("dev", path)
	require.NoError(t, err)

	config, err := store.GetConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://middleware.example.com", config.MiddlewareURL)
	assert.Equal(t, "Middleware", config.AuthType)
	assert.Equal(t, "etendo_123", config.AccountID)
	assert.Equal(t, []string{"google", "microsoft"}, SplitList(config.AllowedProviders))

	// Unset values take defaults
	assert.Equal(t, "sso-gateway/dev/session-token", config.SessionTokenSecretName)
}

func TestFileParameterStore_GetConfig_DefaultAuthType(t *testing.T) {
	path := writeConfigFile(t, `
sso.middleware.url: https://middleware.example.com
`)

	store, err := NewFileParameterStore("dev", path)
	require.NoError(t, err)

	config, err := store.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Auth0", config.AuthType)
}

func TestFileParameterStore_SSOProperties(t *testing.T) {
	path := writeConfigFile(t, `
sso.auth.type: Auth0
sso.domain.url: tenant.us.auth0.com
sso.client.id: client-123
`)

	store, err := NewFileParameterStore("dev", path)
	require.NoError(t, err)

	props, err := store.SSOProperties(context.Background(), SSOPropertyNames("auth.type, domain.url, client.id, middleware.url"))
	require.NoError(t, err)

	assert.Equal(t, "Auth0", props["authtype"])
	assert.Equal(t, "tenant.us.auth0.com", props["domainurl"])
	assert.Equal(t, "client-123", props["clientid"])
	assert.Equal(t, "", props["middlewareurl"])
}

func TestFileParameterStore_GetParameter(t *testing.T) {
	path := writeConfigFile(t, `
sso.client.id: client-123
`)

	store, err := NewFileParameterStore("dev", path)
	require.NoError(t, err)

	value, err := store.GetParameter(context.Background(), "sso.client.id")
	require.NoError(t, err)
	assert.Equal(t, "client-123", value)

	_, err = store.GetParameter(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNewFileParameterStore_MissingFile(t *testing.T) {
	_, err := NewFileParameterStore("dev", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
