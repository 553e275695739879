// Package popup owns the lifecycle of a child browser window used for OAuth
// authorization or file picking: open, render-loading, render-error, navigate,
// close, and timeout. The window itself is abstract (Window); the controller
// enforces the orchestration discipline — a blocked popup is a first-class
// state, not an exception, and every operation on a blocked or closed session
// is a silent no-op.
package popup

import (
	"sync"
)

// Geometry describes the size and placement of a popup window.
type Geometry struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// Centered returns the standard popup geometry: half the screen in each
// dimension, centered.
func Centered(screenWidth, screenHeight int) Geometry {
	w := screenWidth / 2
	h := screenHeight / 2
	return Geometry{
		Width:  w,
		Height: h,
		Left:   (screenWidth - w) / 2,
		Top:    (screenHeight - h) / 2,
	}
}

// Session is a child window under orchestration. Handle is nil when the
// opener blocked the popup; callers must treat that as a normal outcome.
type Session struct {
	Name         string
	Handle       Window
	TargetOrigin string
	Geometry     Geometry

	mu     sync.Mutex
	closed bool
}

// Blocked reports whether the popup failed to open.
func (s *Session) Blocked() bool {
	return s == nil || s.Handle == nil
}

// Closed reports whether the session has ended (user close, timeout, or
// successful completion).
func (s *Session) Closed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	return s.Handle != nil && s.Handle.Closed()
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// live reports whether operations should reach the underlying window.
func (s *Session) live() bool {
	return !s.Blocked() && !s.Closed()
}

// Controller opens popup sessions and dispatches lifecycle operations to
// them. At most one live session exists per popup name; opening a name that
// is already open supersedes the prior session, mirroring how a browser
// reuses a named tab.
type Controller struct {
	opener Opener

	mu    sync.Mutex
	slots map[string]*Session
}

// NewController creates a Controller backed by the given opener.
func NewController(opener Opener) *Controller {
	return &Controller{
		opener: opener,
		slots:  make(map[string]*Session),
	}
}

// Open requests a popup with the given name and geometry. When the opener
// refuses (popup blocked), the returned session has a nil Handle and every
// later operation on it is a no-op. Open never returns an error: blocked is
// an expected state for callers to inspect via Blocked().
func (c *Controller) Open(name string, geom Geometry) *Session {
	handle := c.opener.Open(name, geom)

	session := &Session{
		Name:     name,
		Handle:   handle,
		Geometry: geom,
	}

	c.mu.Lock()
	if prior, ok := c.slots[name]; ok && prior != nil {
		// The browser reuses the named tab; the prior session no longer
		// controls an independent window.
		prior.markClosed()
	}
	c.slots[name] = session
	c.mu.Unlock()

	return session
}

// RenderLoading paints a minimal loading placeholder into the popup before
// the real destination is known, so the user never stares at a blank window
// during token or provider fetches.
func (c *Controller) RenderLoading(s *Session, message string) {
	if s == nil || !s.live() {
		return
	}
	_ = s.Handle.WriteHTML(loadingHTML(message))
}

// RenderError paints an error placeholder with a manual close affordance.
// Used when setup fails after the popup is already open.
func (c *Controller) RenderError(s *Session, title, message string) {
	if s == nil || !s.live() {
		return
	}
	_ = s.Handle.WriteHTML(errorHTML(title, message))
}

// Navigate replaces the popup's location with the real destination. The
// navigation is replace-style: no history entry is left for the user to
// "back" into a broken loading page.
func (c *Controller) Navigate(s *Session, url string) {
	if s == nil || !s.live() {
		return
	}
	_ = s.Handle.Navigate(url)
}

// Close closes the popup if still open. Idempotent: closing an already
// closed or blocked session is a no-op, never an error.
func (c *Controller) Close(s *Session) {
	if s == nil || s.Blocked() {
		return
	}
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if alreadyClosed {
		return
	}
	_ = s.Handle.Close()
}
