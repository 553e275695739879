package errors

import "errors"

var (
	// ErrPopupBlocked indicates the browser (or window opener) refused to
	// create the popup. Non-fatal and user-actionable; flows must surface
	// instructions rather than fail silently.
	ErrPopupBlocked = errors.New("popup window was blocked")

	// ErrTokenError indicates the session/access token endpoint returned a
	// non-2xx status or an unusable payload. Fatal to the current flow.
	ErrTokenError = errors.New("failed to obtain session token")

	// ErrDirectoryUnavailable indicates the provider directory endpoint could
	// not be reached or returned a non-success status.
	ErrDirectoryUnavailable = errors.New("provider directory unavailable")

	// ErrMalformedDirectory indicates the provider directory response could
	// not be parsed into the expected shape.
	ErrMalformedDirectory = errors.New("provider directory response malformed")

	// ErrMalformedToken indicates a state token that was not produced by the
	// codec (unparseable, missing fields, or bad signature). Callers discard
	// the callback silently; this is never a user-facing error.
	ErrMalformedToken = errors.New("malformed state token")

	// ErrUntrustedOrigin indicates a completion message arrived from an origin
	// other than the expected provider/middleware origin. Discarded silently.
	ErrUntrustedOrigin = errors.New("message from untrusted origin")

	// ErrExternalLogoutFailure indicates the best-effort IdP logout did not
	// complete. Logged only; local logout proceeds regardless.
	ErrExternalLogoutFailure = errors.New("external IdP logout failed")

	// ErrFlowNotFound indicates a callback carried a nonce that does not match
	// any pending flow (already consumed, expired, or forged).
	ErrFlowNotFound = errors.New("no pending flow for state")

	// ErrMissingSSOConfig indicates required SSO properties (domain, client id)
	// were absent from configuration.
	ErrMissingSSOConfig = errors.New("sso configuration incomplete")
)
