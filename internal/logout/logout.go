// Package logout orchestrates SSO sign-out: a best-effort external logout at
// the identity provider followed by the local ERP session teardown. The local
// teardown is the part that matters; the external step may fail, time out, or
// be blocked without ever preventing it.
package logout

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
	"github.com/etendosoftware/sso-gateway/internal/popup"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

// Deadlines bounds the external logout steps. Every deadline is a named
// field rather than a literal at the call site.
type Deadlines struct {
	// External bounds the IdP logout popup before it is closed.
	External time.Duration

	// Middleware bounds the middleware logout request.
	Middleware time.Duration
}

const (
	defaultExternalDeadline   = 5 * time.Second
	defaultMiddlewareDeadline = 1 * time.Second
)

func (d Deadlines) external() time.Duration {
	if d.External <= 0 {
		return defaultExternalDeadline
	}
	return d.External
}

func (d Deadlines) middleware() time.Duration {
	if d.Middleware <= 0 {
		return defaultMiddlewareDeadline
	}
	return d.Middleware
}

// Confirmer asks the user to confirm sign-out.
type Confirmer interface {
	Confirm(ctx context.Context) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context) (bool, error) {
	return f(ctx)
}

// BaseLogout is the ERP's own session teardown, injected as a capability
// instead of reached through shared mutable state.
type BaseLogout interface {
	Logout(ctx context.Context) error
}

// BaseLogoutFunc adapts a function to the BaseLogout interface.
type BaseLogoutFunc func(ctx context.Context) error

func (f BaseLogoutFunc) Logout(ctx context.Context) error {
	return f(ctx)
}

// MessageBar is the host surface where logout problems are reported.
type MessageBar interface {
	Error(ctx context.Context, text string)
}

// ConfigSource resolves the SSO properties logout needs. Satisfied by
// services.ParameterStore.
type ConfigSource interface {
	SSOProperties(ctx context.Context, names []string) (map[string]string, error)
}

// ssoPropertyList names the properties the logout flow consumes.
const ssoPropertyList = "auth.type, domain.url, client.id, middleware.url"

// Properties is the resolved SSO configuration for one logout.
type Properties struct {
	AuthType      string
	Domain        string
	ClientID      string
	MiddlewareURL string
}

// Config carries the orchestrator's fixed coordinates.
type Config struct {
	// Origin is the application origin, e.g. "https://erp.example.com".
	Origin string

	// ContextPath is the ERP context mounted under Origin, e.g. "/etendo".
	ContextPath string

	// RedirectURL overrides the post-logout landing page. Empty falls back
	// to Origin+ContextPath.
	RedirectURL string

	Deadlines Deadlines
}

// ReturnTo is the sanitized URL the IdP redirects back to: origin plus
// context path with any trailing slash stripped.
func (c Config) ReturnTo() string {
	return strings.TrimSuffix(c.Origin+c.ContextPath, "/")
}

// redirectTarget is where the browser lands after local logout.
func (c Config) redirectTarget() string {
	if c.RedirectURL != "" {
		return c.RedirectURL
	}
	return c.ReturnTo()
}

// Outcome reports how one logout request resolved.
type Outcome struct {
	// Cancelled is set when the user declined the confirmation prompt.
	// Nothing else happened in that case.
	Cancelled bool

	// RedirectURL is where the browser should land. Empty when cancelled.
	RedirectURL string

	// ExternalErr records a best-effort external logout failure. It is
	// informational; local logout ran regardless.
	ExternalErr error
}

// Orchestrator drives the two-phase SSO logout.
type Orchestrator struct {
	confirmer Confirmer
	config    ConfigSource
	popups    *popup.Controller
	client    *http.Client
	bar       MessageBar
	base      BaseLogout
	settings  Config
}

// New creates an Orchestrator. httpClient may be nil.
func New(confirmer Confirmer, config ConfigSource, popups *popup.Controller, httpClient *http.Client, bar MessageBar, base BaseLogout, settings Config) *Orchestrator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Orchestrator{
		confirmer: confirmer,
		config:    config,
		popups:    popups,
		client:    httpClient,
		bar:       bar,
		base:      base,
		settings:  settings,
	}
}

// Logout runs one sign-out request. Until the user confirms, no network
// request and no redirect happens. Once confirmed, the base logout runs
// exactly once no matter how the external step resolves.
func (o *Orchestrator) Logout(ctx context.Context, confirmed bool) (Outcome, error) {
	logger := zerolog.Ctx(ctx)

	if !confirmed {
		ok, err := o.confirmer.Confirm(ctx)
		if err != nil {
			return Outcome{Cancelled: true}, err
		}
		if !ok {
			logger.Info().Msg("Logout cancelled by user")
			return Outcome{Cancelled: true}, nil
		}
	}

	// Past this point the base logout must run exactly once on every path.
	var once sync.Once
	var baseErr error
	runBase := func() {
		once.Do(func() {
			baseErr = o.base.Logout(context.WithoutCancel(ctx))
		})
	}
	defer runBase()

	outcome := Outcome{RedirectURL: o.settings.redirectTarget()}

	props, err := o.fetchProperties(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("SSO config fetch failed; proceeding to local logout")
		o.bar.Error(ctx, "Single sign-out is unavailable; signing out locally.")
		outcome.ExternalErr = fmt.Errorf("%w: %v", apperrors.ErrExternalLogoutFailure, err)
		runBase()
		return outcome, baseErr
	}

	if externalErr := o.dispatchExternal(ctx, props); externalErr != nil {
		logger.Warn().Err(externalErr).Msg("External logout failed; proceeding to local logout")
		outcome.ExternalErr = fmt.Errorf("%w: %v", apperrors.ErrExternalLogoutFailure, externalErr)
	}

	runBase()
	return outcome, baseErr
}

func (o *Orchestrator) fetchProperties(ctx context.Context) (Properties, error) {
	props, err := o.config.SSOProperties(ctx, services.SSOPropertyNames(ssoPropertyList))
	if err != nil {
		return Properties{}, err
	}

	resolved := Properties{
		AuthType:      props["authtype"],
		Domain:        props["domainurl"],
		ClientID:      props["clientid"],
		MiddlewareURL: props["middlewareurl"],
	}
	if resolved.AuthType == "" {
		return Properties{}, fmt.Errorf("%w: auth.type is empty", apperrors.ErrMissingSSOConfig)
	}
	return resolved, nil
}

// dispatchExternal runs the IdP-appropriate external logout, bounded by its
// deadline. The error return is informational only.
func (o *Orchestrator) dispatchExternal(ctx context.Context, props Properties) error {
	if strings.EqualFold(props.AuthType, "Auth0") {
		return o.auth0Logout(ctx, props)
	}
	return o.middlewareLogout(ctx, props)
}

// auth0Logout opens a minimal hidden popup on the Auth0 logout URL and closes
// it when the deadline elapses. Auth0 gives no completion signal, so the
// deadline is the only terminator.
func (o *Orchestrator) auth0Logout(ctx context.Context, props Properties) error {
	if props.Domain == "" || props.ClientID == "" {
		return fmt.Errorf("%w: domain.url or client.id is empty", apperrors.ErrMissingSSOConfig)
	}

	session := o.popups.Open("SSOLogout", popup.Geometry{Width: 1, Height: 1})
	if session.Blocked() {
		return apperrors.ErrPopupBlocked
	}

	o.popups.Navigate(session, Auth0LogoutURL(props.Domain, props.ClientID, o.settings.ReturnTo()))

	select {
	case <-time.After(o.settings.Deadlines.external()):
	case <-ctx.Done():
	}
	o.popups.Close(session)
	return nil
}

// middlewareLogout issues a bounded request to the middleware's logout
// endpoint.
func (o *Orchestrator) middlewareLogout(ctx context.Context, props Properties) error {
	if props.MiddlewareURL == "" {
		return fmt.Errorf("%w: middleware.url is empty", apperrors.ErrMissingSSOConfig)
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.settings.Deadlines.middleware())
	defer cancel()

	endpoint := strings.TrimSuffix(props.MiddlewareURL, "/") + "/logout"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("middleware logout returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Auth0LogoutURL builds the IdP logout URL:
// https://{domain}/v2/logout?client_id={id}&returnTo={encoded redirect}.
func Auth0LogoutURL(domain, clientID, returnTo string) string {
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("returnTo", returnTo)
	return fmt.Sprintf("https://%s/v2/logout?%s", domain, q.Encode())
}
