package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	// MiddlewareURL is the base URL of the OAuth middleware that hosts the
	// provider directory and the authorization start endpoint.
	MiddlewareURL string

	// AuthType selects the SSO integration flavor ("Auth0" or middleware).
	AuthType string

	// DomainURL is the Auth0 tenant domain, without scheme.
	DomainURL string

	// ClientID is the Auth0 application client id used for logout.
	ClientID string

	// LogoutRedirectURL is where the browser lands after SSO logout. Empty
	// means the ERP context root.
	LogoutRedirectURL string

	// AccountID identifies the ERP account against the middleware.
	AccountID string

	// RedirectURI is the callback page completing the popup flow.
	RedirectURI string

	// AllowedOrigin is the exact origin trusted for callback messages.
	AllowedOrigin string

	// AllowedDomains is a comma-separated list of email domains permitted to
	// link identities. Empty allows all domains.
	AllowedDomains string

	// AllowedProviders is a comma-separated list of providers users may link.
	// Empty allows all providers.
	AllowedProviders string

	// BlockedScopes is a comma-separated list of scopes that may never be
	// requested through a link flow.
	BlockedScopes string

	SessionTokenSecretName string
	CustomDomain           string
	APIGatewayID           string
}

// SplitList parses a comma-separated config value into trimmed entries.
func SplitList(value string) []string {
	return SSOPropertyNames(value)
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)

	// SSOProperties resolves the named SSO properties. Each name is looked up
	// under the "sso." prefix and returned under the name with dots removed,
	// e.g. "auth.type" resolves parameter "sso.auth.type" into key "authtype".
	SSOProperties(ctx context.Context, names []string) (map[string]string, error)
}

// ssoPrefix namespaces SSO properties within the application's parameters.
const ssoPrefix = "sso."

// SSOPropertyNames parses a comma-separated property list such as
// "auth.type, domain.url, client.id, middleware.url".
func SSOPropertyNames(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SSOPropertyKey is the response key for a property name: dots removed.
func SSOPropertyKey(name string) string {
	return strings.ReplaceAll(name, ".", "")
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client *ssm.Client
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	// Check cache first
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	// Fetch from SSM
	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	// Cache the value
	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/sso-gateway", s.env)

	// Use GetParametersByPath for efficient batch retrieval
	result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
	}

	// Build a map of parameter names to values
	params := make(map[string]string)
	for _, param := range result.Parameters {
		if param.Name != nil && param.Value != nil {
			params[*param.Name] = *param.Value
		}
	}

	// Cache all retrieved parameters
	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	// Build config from parameters
	config := &Config{
		MiddlewareURL:          params[fmt.Sprintf("/%s/sso-gateway/sso.middleware.url", s.env)],
		AuthType:               params[fmt.Sprintf("/%s/sso-gateway/sso.auth.type", s.env)],
		DomainURL:              params[fmt.Sprintf("/%s/sso-gateway/sso.domain.url", s.env)],
		ClientID:               params[fmt.Sprintf("/%s/sso-gateway/sso.client.id", s.env)],
		LogoutRedirectURL:      params[fmt.Sprintf("/%s/sso-gateway/sso.logout.redirect.url", s.env)],
		AccountID:              params[fmt.Sprintf("/%s/sso-gateway/sso.middleware.account.id", s.env)],
		RedirectURI:            params[fmt.Sprintf("/%s/sso-gateway/sso.middleware.redirect.uri", s.env)],
		AllowedOrigin:          params[fmt.Sprintf("/%s/sso-gateway/sso.allowed.origin", s.env)],
		AllowedDomains:         params[fmt.Sprintf("/%s/sso-gateway/sso.allowed.domains", s.env)],
		AllowedProviders:       params[fmt.Sprintf("/%s/sso-gateway/sso.allowed.providers", s.env)],
		BlockedScopes:          params[fmt.Sprintf("/%s/sso-gateway/sso.blocked.scopes", s.env)],
		SessionTokenSecretName: params[fmt.Sprintf("/%s/sso-gateway/session-token-secret-name", s.env)],
		CustomDomain:           params[fmt.Sprintf("/%s/sso-gateway/custom-domain", s.env)],
		APIGatewayID:           params[fmt.Sprintf("/%s/sso-gateway/api-gateway-id", s.env)],
	}

	applyDefaults(config)

	return config, nil
}

// SSOProperties resolves SSO properties from Parameter Store.
func (s *SSMParameterStore) SSOProperties(ctx context.Context, names []string) (map[string]string, error) {
	props := make(map[string]string, len(names))
	for _, name := range names {
		paramName := fmt.Sprintf("/%s/sso-gateway/%s%s", s.env, ssoPrefix, name)
		value, err := s.GetParameter(ctx, paramName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve SSO property %s: %w", name, err)
		}
		props[SSOPropertyKey(name)] = value
	}
	return props, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
// This is a fallback implementation that reads from env vars
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	// For env var implementation, we don't use the full path
	// Just return the value if set
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		MiddlewareURL:          os.Getenv("SSO_MIDDLEWARE_URL"),
		AuthType:               os.Getenv("SSO_AUTH_TYPE"),
		DomainURL:              os.Getenv("SSO_DOMAIN_URL"),
		ClientID:               os.Getenv("SSO_CLIENT_ID"),
		LogoutRedirectURL:      os.Getenv("SSO_LOGOUT_REDIRECT_URL"),
		AccountID:              os.Getenv("SSO_ACCOUNT_ID"),
		RedirectURI:            os.Getenv("SSO_REDIRECT_URI"),
		AllowedOrigin:          os.Getenv("SSO_ALLOWED_ORIGIN"),
		AllowedDomains:         os.Getenv("SSO_ALLOWED_DOMAINS"),
		AllowedProviders:       os.Getenv("SSO_ALLOWED_PROVIDERS"),
		BlockedScopes:          os.Getenv("SSO_BLOCKED_SCOPES"),
		SessionTokenSecretName: os.Getenv("SESSION_TOKEN_SECRET_NAME"),
		CustomDomain:           os.Getenv("CUSTOM_DOMAIN"),
		APIGatewayID:           os.Getenv("API_GATEWAY_ID"),
	}

	applyDefaults(config)

	// Set default session token secret name if not provided
	if config.SessionTokenSecretName == "" {
		config.SessionTokenSecretName = fmt.Sprintf("sso-gateway/%s/session-token", e.env)
	}

	return config, nil
}

// SSOProperties resolves SSO properties from SSO_* environment variables,
// e.g. "auth.type" reads SSO_AUTH_TYPE.
func (e *EnvParameterStore) SSOProperties(ctx context.Context, names []string) (map[string]string, error) {
	props := make(map[string]string, len(names))
	for _, name := range names {
		envName := "SSO_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
		props[SSOPropertyKey(name)] = os.Getenv(envName)
	}
	return props, nil
}

func applyDefaults(config *Config) {
	if config.AuthType == "" {
		config.AuthType = "Auth0"
	}
}

func boolPtr(b bool) *bool {
	return &b
}
