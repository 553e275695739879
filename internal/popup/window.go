package popup

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// Window is a live child window reference. Implementations must tolerate
// repeated Close calls.
type Window interface {
	// Navigate replaces the window's location with url.
	Navigate(url string) error

	// WriteHTML paints a placeholder document into the window.
	WriteHTML(markup string) error

	// Close closes the window.
	Close() error

	// Closed reports whether the window has been closed (by the user or by
	// this controller).
	Closed() bool
}

// Opener creates popup windows. Returning nil means the popup was blocked;
// openers never report blocking as an error.
type Opener interface {
	Open(name string, geom Geometry) Window
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(name string, geom Geometry) Window

func (f OpenerFunc) Open(name string, geom Geometry) Window {
	return f(name, geom)
}

// ExecOpener opens popups in the user's default browser via the platform
// launcher. Used by the CLI link flow; the gateway's HTTP flows use windows
// driven by the browser itself. A system browser tab cannot be repainted from
// outside, so WriteHTML is a recorded no-op on these windows.
type ExecOpener struct{}

func (ExecOpener) Open(name string, geom Geometry) Window {
	if launcherCommand() == nil {
		// No launcher on this platform behaves like a blocked popup.
		return nil
	}
	return &execWindow{name: name}
}

type execWindow struct {
	name string

	mu     sync.Mutex
	closed bool
}

func (w *execWindow) Navigate(url string) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil
	}

	args := launcherCommand()
	if args == nil {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	cmd := exec.Command(args[0], append(args[1:], url)...)
	// Fire and forget; the browser owns the tab from here.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func (w *execWindow) WriteHTML(string) error { return nil }

func (w *execWindow) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *execWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func launcherCommand() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{"xdg-open"}
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"cmd", "/c", "start"}
	default:
		return nil
	}
}
