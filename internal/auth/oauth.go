package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/etendosoftware/sso-gateway/internal/authz"
	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
)

const (
	sessionName  = "link-session"
	stateKey     = "state"
	userKey      = "user_id"
	providerKey  = "provider"
	scopeKey     = "scope"
	profileKey   = "profile" // stores full profile JSON
	tokenKey     = "access_token"
)

// IdentityLinker records a verified external identity against an ERP user.
// Satisfied by identitydao.DAO.
type IdentityLinker interface {
	Link(ctx context.Context, input identitydao.LinkInput) (identitydao.Record, error)
}

// Authenticator runs the direct link flow: it sends the user to the identity
// provider, verifies the callback, and records the linked identity.
type Authenticator struct {
	oidcProvider  *oidc.Provider
	oauthProvider Provider
	oauth2Config  oauth2.Config
	sessionStore  *sessions.CookieStore
	callbackURL   string
	authorizer    *authz.Authorizer // optional authorization policy enforcement
	identities    IdentityLinker
	successURL    string
}

type Profile struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AuthenticatorInput struct {
	Provider     Provider
	ClientID     string
	ClientSecret string
	CallbackURL  string
	SuccessURL   string
	Authorizer   *authz.Authorizer
	Identities   IdentityLinker
	SessionKeys  [][]byte
	IsLocalDev   bool // Set to true for local development (disables Secure cookie flag)
}

func NewAuthenticator(ctx context.Context, input AuthenticatorInput) (*Authenticator, error) {
	logger := zerolog.Ctx(ctx)

	issuerURL := input.Provider.GetIssuerURL()

	logger.Info().
		Str("provider_type", input.Provider.GetProviderType()).
		Str("issuer_url", issuerURL).
		Msg("Initializing OIDC provider")

	// Create OIDC provider for token verification
	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		logger.Error().
			Err(err).
			Str("issuer_url", issuerURL).
			Str("provider_type", input.Provider.GetProviderType()).
			Msg("Failed to create OIDC provider")
		return nil, fmt.Errorf("failed to create OIDC provider for %s: %w", issuerURL, err)
	}

	oauth2Config := oauth2.Config{
		ClientID:     input.ClientID,
		ClientSecret: input.ClientSecret,
		RedirectURL:  input.CallbackURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	// Use provided session keys (supports rotation - multiple valid keys)
	// If no keys provided, generate a fallback key (for local dev)
	sessionKeys := input.SessionKeys
	if len(sessionKeys) == 0 {
		logger.Warn().Msg("No session keys provided, generating ephemeral fallback key")
		fallbackKey := make([]byte, 32)
		if _, err := rand.Read(fallbackKey); err != nil {
			return nil, fmt.Errorf("failed to generate fallback session key: %w", err)
		}
		sessionKeys = [][]byte{fallbackKey}
	}

	// Create session store with multiple keys (newest first)
	// gorilla/sessions will encrypt with the first key and try decrypting with all keys
	sessionStore := sessions.NewCookieStore(sessionKeys...)

	// Secure flag should only be true for HTTPS (production)
	// For local dev on http://localhost, Secure must be false or cookies won't work
	isSecure := !input.IsLocalDev

	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600, // the link flow should complete well within an hour
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info().
		Int("session_key_count", len(sessionKeys)).
		Str("provider_type", input.Provider.GetProviderType()).
		Bool("secure_cookies", isSecure).
		Msg("Authenticator initialized")

	return &Authenticator{
		oidcProvider:  oidcProvider,
		oauthProvider: input.Provider,
		oauth2Config:  oauth2Config,
		sessionStore:  sessionStore,
		callbackURL:   input.CallbackURL,
		authorizer:    input.Authorizer,
		identities:    input.Identities,
		successURL:    input.SuccessURL,
	}, nil
}

// generateState creates a random state value for CSRF protection
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HandleLinkStart begins a link flow: it stashes the link parameters in the
// session alongside a fresh state value and redirects to the identity
// provider.
func (a *Authenticator) HandleLinkStart(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	// NoOp mode - redirect to home
	if a.IsNoOp() {
		logger.Info().Msg("Link flow disabled in NoOp auth mode, redirecting to home")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	state, err := generateState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate state")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Get or create new session. Decrypt errors are ignored: an invalid or
	// expired cookie yields a fresh session, which is what a new flow needs.
	session, _ := a.sessionStore.Get(r, sessionName)

	session.Values[stateKey] = state
	session.Values[userKey] = userID
	session.Values[providerKey] = r.URL.Query().Get("provider")
	session.Values[scopeKey] = r.URL.Query().Get("scope")
	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to save session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	authURL := a.oauth2Config.AuthCodeURL(state)
	logger.Info().
		Str("provider", a.oauthProvider.GetProviderType()).
		Msg("Redirecting to identity provider for linking")
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleLinkCallback completes a link flow: it verifies the state, exchanges
// the code, verifies the ID token, authorizes the link, and records the
// linked identity.
func (a *Authenticator) HandleLinkCallback(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	// NoOp mode - redirect to home
	if a.IsNoOp() {
		logger.Info().Msg("Link callback disabled in NoOp auth mode, redirecting to home")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	session, err := a.sessionStore.Get(r, sessionName)
	if err != nil {
		logger.Warn().
			Str("error", err.Error()).
			Msg("Session cookie error in callback, restarting link flow")
		http.Redirect(w, r, "/link/start", http.StatusTemporaryRedirect)
		return
	}

	// Verify state
	storedState, ok := session.Values[stateKey].(string)
	if !ok || storedState == "" {
		logger.Error().Msg("State not found in session")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	receivedState := r.URL.Query().Get("state")
	if receivedState != storedState {
		logger.Error().Msg("State mismatch")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	// Exchange code for token
	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Error().Msg("Code not found in callback")
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), code)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to exchange code for token")
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	// Extract ID token
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		logger.Error().Msg("No id_token in token response")
		http.Error(w, "No id_token", http.StatusInternalServerError)
		return
	}

	// Verify ID token
	verifier := a.oidcProvider.Verifier(&oidc.Config{ClientID: a.oauth2Config.ClientID})
	idToken, err := verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		logger.Error().
			Err(err).
			Str("client_id", a.oauth2Config.ClientID).
			Msg("Failed to verify ID token")
		http.Error(w, "Failed to verify token", http.StatusInternalServerError)
		return
	}

	// Extract profile
	var profile Profile
	if err := idToken.Claims(&profile); err != nil {
		logger.Error().Err(err).Msg("Failed to extract claims")
		http.Error(w, "Failed to extract profile", http.StatusInternalServerError)
		return
	}

	userID, _ := session.Values[userKey].(string)
	provider, _ := session.Values[providerKey].(string)
	scope, _ := session.Values[scopeKey].(string)
	if provider == "" {
		provider = a.oauthProvider.GetProviderType()
	}

	// Authorize the link (if authorizer is configured)
	if a.authorizer != nil {
		authzProfile := authz.Profile{
			Sub:      profile.Sub,
			Name:     profile.Name,
			Email:    profile.Email,
			Provider: provider,
			Scopes:   strings.Fields(scope),
		}
		if err := a.authorizer.Authorize(r.Context(), authzProfile); err != nil {
			logger.Warn().
				Str("sub", profile.Sub).
				Str("email", profile.Email).
				Err(err).
				Msg("Link authorization failed")
			http.Error(w, fmt.Sprintf("Access denied: %v", err), http.StatusForbidden)
			return
		}
	}

	// Record the linked identity
	if a.identities != nil && userID != "" {
		if _, err := a.identities.Link(r.Context(), identitydao.LinkInput{
			UserID:   userID,
			Provider: provider,
			Subject:  profile.Sub,
			Email:    profile.Email,
			Name:     profile.Name,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to record linked identity")
			http.Error(w, "Failed to record linked identity", http.StatusInternalServerError)
			return
		}
	}

	// Store full profile as JSON in session
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal profile")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session.Values[profileKey] = string(profileJSON)
	session.Values[tokenKey] = token.AccessToken
	delete(session.Values, stateKey) // Clean up state

	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to save session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Str("sub", profile.Sub).
		Str("provider", provider).
		Msg("Identity linked successfully")

	target := a.successURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandleLogout clears the link session and redirects to the provider's
// logout endpoint.
func (a *Authenticator) HandleLogout(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	// NoOp mode - redirect to home
	if a.IsNoOp() {
		logger.Info().Msg("Logout not required in NoOp auth mode, redirecting to home")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	// Get or create session (ignore decrypt errors - we're clearing it anyway)
	session, _ := a.sessionStore.Get(r, sessionName)

	// Clear session
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to clear session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Get the return URL (scheme + host from callback URL)
	callbackURL, err := url.Parse(a.callbackURL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse callback URL")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	returnTo := fmt.Sprintf("%s://%s", callbackURL.Scheme, callbackURL.Host)

	// Get provider-specific logout URL
	logoutURL := a.oauthProvider.GetLogoutURL(a.oauth2Config.ClientID, returnTo)

	logger.Info().
		Str("provider", a.oauthProvider.GetProviderType()).
		Msg("Logging out user")

	// Redirect to provider logout (or return URL for providers without logout endpoint)
	http.Redirect(w, r, logoutURL, http.StatusTemporaryRedirect)
}
