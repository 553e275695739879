package services

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileParameterStore implements ParameterStore from a YAML file for local
// development without AWS access. Keys mirror the SSM parameter names, e.g.
//
//	sso.middleware.url: https://middleware.example.com
//	sso.auth.type: Auth0
type FileParameterStore struct {
	env    string
	params map[string]string
}

// NewFileParameterStore loads a YAML configuration file.
func NewFileParameterStore(env, path string) (*FileParameterStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var params map[string]string
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &FileParameterStore{
		env:    env,
		params: params,
	}, nil
}

// GetParameter retrieves a single parameter by its file key.
func (f *FileParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	value, ok := f.params[name]
	if !ok {
		return "", fmt.Errorf("parameter %s not found", name)
	}
	return value, nil
}

// GetConfig loads all application configuration from the file.
func (f *FileParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		MiddlewareURL:          f.params["sso.middleware.url"],
		AuthType:               f.params["sso.auth.type"],
		DomainURL:              f.params["sso.domain.url"],
		ClientID:               f.params["sso.client.id"],
		LogoutRedirectURL:      f.params["sso.logout.redirect.url"],
		AccountID:              f.params["sso.middleware.account.id"],
		RedirectURI:            f.params["sso.middleware.redirect.uri"],
		AllowedOrigin:          f.params["sso.allowed.origin"],
		AllowedDomains:         f.params["sso.allowed.domains"],
		AllowedProviders:       f.params["sso.allowed.providers"],
		BlockedScopes:          f.params["sso.blocked.scopes"],
		SessionTokenSecretName: f.params["session-token-secret-name"],
		CustomDomain:           f.params["custom-domain"],
		APIGatewayID:           f.params["api-gateway-id"],
	}

	applyDefaults(config)

	if config.SessionTokenSecretName == "" {
		config.SessionTokenSecretName = fmt.Sprintf("sso-gateway/%s/session-token", f.env)
	}

	return config, nil
}

// SSOProperties resolves SSO properties from the file's "sso."-prefixed keys.
func (f *FileParameterStore) SSOProperties(ctx context.Context, names []string) (map[string]string, error) {
	props := make(map[string]string, len(names))
	for _, name := range names {
		props[SSOPropertyKey(name)] = f.params[ssoPrefix+name]
	}
	return props, nil
}
