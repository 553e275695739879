package auth

import (
	"fmt"
	"strings"
)

// MiddlewareProvider implements the Provider interface for the OAuth
// middleware that brokers providers without a direct integration.
type MiddlewareProvider struct {
	BaseURL string // middleware base URL (e.g., "https://sso.example.com")
}

// GetIssuerURL returns the middleware's OIDC issuer URL. The middleware
// exposes standard discovery under its base URL.
func (p *MiddlewareProvider) GetIssuerURL() string {
	return strings.TrimSuffix(p.BaseURL, "/") + "/"
}

// GetLogoutURL returns the middleware's logout endpoint. The middleware does
// not consume client_id or returnTo; the caller redirects itself afterwards.
func (p *MiddlewareProvider) GetLogoutURL(clientID, returnTo string) string {
	return fmt.Sprintf("%s/logout", strings.TrimSuffix(p.BaseURL, "/"))
}

// GetProviderType returns "middleware".
func (p *MiddlewareProvider) GetProviderType() string {
	return "middleware"
}
