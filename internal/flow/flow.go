// Package flow orchestrates the account-linking popup flow: open the popup,
// gather the token and provider directory, hand the user off to the provider,
// and reconcile the callback message that eventually comes back.
package flow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
	"github.com/etendosoftware/sso-gateway/internal/popup"
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
	"github.com/etendosoftware/sso-gateway/internal/statetoken"
)

// State identifies where a flow instance is in its lifecycle.
type State string

const (
	StateIdle                 State = "IDLE"
	StatePopupOpening         State = "POPUP_OPENING"
	StatePopupBlocked         State = "POPUP_BLOCKED"
	StateLoadingShown         State = "LOADING_SHOWN"
	StateTokenFetching        State = "TOKEN_FETCHING"
	StateTokenFetchFailed     State = "TOKEN_FETCH_FAILED"
	StateProvidersFetching    State = "PROVIDERS_FETCHING"
	StateProvidersFetchFailed State = "PROVIDERS_FETCH_FAILED"
	StateProviderSelected     State = "PROVIDER_SELECTED"
	StateNavigating           State = "NAVIGATING"
	StateAwaitingCallback     State = "AWAITING_CALLBACK"
	StateSuccess              State = "SUCCESS"
	StateRejected             State = "REJECTED"
	StateUserClosed           State = "USER_CLOSED_POPUP"
)

// Terminal reports whether the state ends the flow.
func (s State) Terminal() bool {
	switch s {
	case StatePopupBlocked, StateTokenFetchFailed, StateProvidersFetchFailed,
		StateSuccess, StateRejected, StateUserClosed:
		return true
	}
	return false
}

// MessageBar is the host surface where flow outcomes are reported. The
// orchestrator never owns persistent UI; all result reporting goes here.
type MessageBar interface {
	Success(ctx context.Context, text string)
	Error(ctx context.Context, text string)
}

// TokenSource resolves the access token a flow needs before navigation.
type TokenSource interface {
	AccessToken(ctx context.Context, userID, provider, scopeSuffix string) (string, error)
}

// Directory lists the linkable providers.
type Directory interface {
	ListProviders(ctx context.Context, baseEndpoint, redirectURI string) ([]providerdir.ProviderDescriptor, error)
}

// Store persists pending flows so callbacks can be matched server-side.
type Store interface {
	Create(ctx context.Context, input flowdao.CreateInput) (flowdao.Record, error)
	Consume(ctx context.Context, nonce string) (flowdao.Record, error)
	Delete(ctx context.Context, nonce string) error
}

// Config carries the middleware coordinates a flow navigates against.
type Config struct {
	// MiddlewareURL is the base authorization endpoint.
	MiddlewareURL string

	// AccountID identifies the ERP account against the middleware.
	AccountID string

	// RedirectURI is the callback page the provider redirects to.
	RedirectURI string

	// AllowedOrigin is the only origin callback messages are accepted from.
	// Empty means the middleware URL's origin.
	AllowedOrigin string

	// Screen sizes the popup. A zero value centers on a 1920x1080 screen.
	Screen popup.Geometry

	// PopupPollInterval is how often the watcher checks for a user-closed
	// popup. Zero means one second.
	PopupPollInterval time.Duration
}

func (c Config) expectedOrigin() string {
	if c.AllowedOrigin != "" {
		return c.AllowedOrigin
	}
	u, err := url.Parse(c.MiddlewareURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c.MiddlewareURL
	}
	return u.Scheme + "://" + u.Host
}

func (c Config) geometry() popup.Geometry {
	if c.Screen == (popup.Geometry{}) {
		return popup.Centered(1920, 1080)
	}
	return c.Screen
}

// Result is the terminal outcome of a flow.
type Result struct {
	State State
	Err   error
}

// Flow is one in-progress account-linking attempt.
type Flow struct {
	Nonce           string
	UserID          string
	Provider        string
	Scope           string
	ProcessEndpoint string

	session     *popup.Session
	accessToken string

	mu      sync.Mutex
	state   State
	settled bool
	done    chan Result
}

// State returns the flow's current lifecycle state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Wait blocks until the flow reaches a terminal state or ctx expires.
func (f *Flow) Wait(ctx context.Context) (Result, error) {
	select {
	case result := <-f.done:
		return result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// settle transitions to a terminal state exactly once. The second and later
// calls report false and change nothing.
func (f *Flow) settle(result Result) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.state = result.State
	f.mu.Unlock()

	f.done <- result
	return true
}

// StartInput describes the flow a UI action requests.
type StartInput struct {
	UserID          string
	Provider        string // provider key, e.g. "google"
	Scope           string
	ProcessEndpoint string
	WindowName      string
}

// Orchestrator drives account-linking flows and routes callback messages back
// to the flow that initiated them. Safe for concurrent use; each flow carries
// its own nonce, so several may be pending at once.
type Orchestrator struct {
	popups    *popup.Controller
	directory Directory
	tokens    TokenSource
	bar       MessageBar
	store     Store
	signer    *statetoken.Signer
	processor ProcessPoster
	config    Config

	mu      sync.Mutex
	pending map[string]*Flow
}

// New creates an Orchestrator. processor may be nil when no flow carries a
// process endpoint.
func New(popups *popup.Controller, directory Directory, tokens TokenSource, bar MessageBar, store Store, signer *statetoken.Signer, processor ProcessPoster, config Config) *Orchestrator {
	return &Orchestrator{
		popups:    popups,
		directory: directory,
		tokens:    tokens,
		bar:       bar,
		store:     store,
		signer:    signer,
		processor: processor,
		config:    config,
		pending:   make(map[string]*Flow),
	}
}

// Start runs the pre-navigation half of a flow: popup first, then token, then
// directory, then handoff. The popup opens before any network work so a
// blocked popup is reported immediately instead of after an async detour.
func (o *Orchestrator) Start(ctx context.Context, input StartInput) (*Flow, error) {
	logger := zerolog.Ctx(ctx)

	flow := &Flow{
		UserID:          input.UserID,
		Provider:        strings.ToLower(input.Provider),
		Scope:           input.Scope,
		ProcessEndpoint: input.ProcessEndpoint,
		state:           StateIdle,
		done:            make(chan Result, 1),
	}

	windowName := input.WindowName
	if windowName == "" {
		windowName = "Authentication Popup"
	}

	flow.setState(StatePopupOpening)
	flow.session = o.popups.Open(windowName, o.config.geometry())
	if flow.session.Blocked() {
		logger.Info().Str("provider", flow.Provider).Msg("Popup blocked by environment")
		o.bar.Error(ctx, "Popup blocked. Please allow popups for this site and try again.")
		flow.settle(Result{State: StatePopupBlocked, Err: apperrors.ErrPopupBlocked})
		return flow, apperrors.ErrPopupBlocked
	}

	o.popups.RenderLoading(flow.session, "Connecting your account")
	flow.setState(StateLoadingShown)

	flow.setState(StateTokenFetching)
	accessToken, err := o.tokens.AccessToken(ctx, flow.UserID, flow.Provider, flow.Scope)
	if err != nil {
		return flow, o.fail(ctx, flow, StateTokenFetchFailed, "Failed to retrieve token", err)
	}
	flow.accessToken = accessToken

	flow.setState(StateProvidersFetching)
	providers, err := o.directory.ListProviders(ctx, o.config.MiddlewareURL, o.config.RedirectURI)
	if err != nil {
		return flow, o.fail(ctx, flow, StateProvidersFetchFailed, "Provider list unavailable", err)
	}

	provider, ok := selectProvider(providers, flow.Provider)
	if !ok {
		err := fmt.Errorf("%w: provider %q not offered", apperrors.ErrMalformedDirectory, flow.Provider)
		return flow, o.fail(ctx, flow, StateProvidersFetchFailed, "Provider not available", err)
	}
	flow.setState(StateProviderSelected)

	nonce, err := statetoken.NewNonce()
	if err != nil {
		return flow, o.fail(ctx, flow, StateProvidersFetchFailed, "Could not start flow", err)
	}
	flow.Nonce = nonce

	token, err := o.signer.Encode(statetoken.AuthState{
		Nonce:      nonce,
		UserID:     flow.UserID,
		ProviderID: flow.Provider,
	})
	if err != nil {
		return flow, o.fail(ctx, flow, StateProvidersFetchFailed, "Could not start flow", err)
	}

	if _, err := o.store.Create(ctx, flowdao.CreateInput{
		Nonce:           nonce,
		UserID:          flow.UserID,
		Provider:        flow.Provider,
		Scope:           flow.Scope,
		RedirectURI:     o.config.RedirectURI,
		ProcessEndpoint: flow.ProcessEndpoint,
	}); err != nil {
		return flow, o.fail(ctx, flow, StateProvidersFetchFailed, "Could not start flow", err)
	}

	// The callback route must exist before navigation, or a fast provider
	// could answer into the void.
	o.register(flow)

	flow.setState(StateNavigating)
	o.popups.Navigate(flow.session, provider.StartURL(o.config.AccountID, flow.Scope, token))
	flow.setState(StateAwaitingCallback)

	go o.watchPopup(ctx, flow)

	logger.Info().
		Str("provider", flow.Provider).
		Str("scope", flow.Scope).
		Msg("Flow awaiting callback")
	return flow, nil
}

// fail paints the error into the popup and the host message bar, then settles
// the flow. The popup stays open showing the placeholder.
func (o *Orchestrator) fail(ctx context.Context, flow *Flow, state State, title string, err error) error {
	zerolog.Ctx(ctx).Warn().Err(err).Str("provider", flow.Provider).Msg(title)
	o.popups.RenderError(flow.session, title, "Please close this window and try again.")
	o.bar.Error(ctx, title)
	flow.settle(Result{State: state, Err: err})
	return err
}

func (o *Orchestrator) register(flow *Flow) {
	o.mu.Lock()
	o.pending[flow.Nonce] = flow
	o.mu.Unlock()
}

func (o *Orchestrator) unregister(nonce string) {
	o.mu.Lock()
	delete(o.pending, nonce)
	o.mu.Unlock()
}

func (o *Orchestrator) lookup(nonce string) (*Flow, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	flow, ok := o.pending[nonce]
	return flow, ok
}

// watchPopup detects the user closing the popup and ends the flow silently.
// User abort is not an error and must never reach the message bar.
func (o *Orchestrator) watchPopup(ctx context.Context, flow *Flow) {
	interval := o.config.PopupPollInterval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if flow.State().Terminal() {
				return
			}
			if flow.session.Closed() {
				if flow.settle(Result{State: StateUserClosed}) {
					o.unregister(flow.Nonce)
					_ = o.store.Delete(context.WithoutCancel(ctx), flow.Nonce)
				}
				return
			}
		}
	}
}

func selectProvider(providers []providerdir.ProviderDescriptor, key string) (providerdir.ProviderDescriptor, bool) {
	for _, p := range providers {
		if strings.EqualFold(p.Name, key) {
			return p, true
		}
	}
	return providerdir.ProviderDescriptor{}, false
}
