// Package desktop connects the capture loop to the real screen, windows and
// keyboard through robotgo and kbinani/screenshot.
package desktop

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"github.com/kodiwosan/pdf-converter/internal/capture"
	"github.com/kodiwosan/pdf-converter/internal/region"
)

// WindowInfo describes a titled top-level window.
type WindowInfo struct {
	PID    int           `json:"pid" yaml:"pid"`
	Title  string        `json:"title" yaml:"title"`
	Bounds region.Region `json:"bounds" yaml:"bounds"`
}

// Window is a window owned by a process.
type Window struct {
	pid   int
	title string
}

func (w *Window) Title() string { return w.title }

// Bounds queries the current position and size of the window.
func (w *Window) Bounds() region.Region {
	x, y, width, height := robotgo.GetBounds(w.pid)
	return region.Region{Left: x, Top: y, Width: width, Height: height}
}

// Minimized reports whether the window is iconified. Window managers park
// minimized windows off screen or shrink them to nothing.
func (w *Window) Minimized() bool {
	return minimized(w.Bounds())
}

func minimized(b region.Region) bool {
	return b.Width <= 0 || b.Height <= 0 || b.Left <= minimizedOffset || b.Top <= minimizedOffset
}

// minimizedOffset is where Windows moves minimized windows.
const minimizedOffset = -32000

// Restore shows a minimized window again. Activating the owning process
// deiconifies it on the supported platforms.
func (w *Window) Restore(ctx context.Context) error {
	if err := w.Activate(ctx); err != nil {
		return fmt.Errorf("failed to restore window %q: %w", w.title, err)
	}
	return nil
}

// Activate brings the window to the front.
func (w *Window) Activate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := robotgo.ActivePid(w.pid); err != nil {
		return fmt.Errorf("failed to activate pid %d: %w", w.pid, err)
	}
	return nil
}

// Locator finds windows by title among running processes.
type Locator struct {
	logger *slog.Logger
}

// NewLocator creates a locator. A nil logger uses slog.Default().
func NewLocator(logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{logger: logger.With("component", "desktop")}
}

// List returns every process window that has a title, sorted by title.
func (l *Locator) List(ctx context.Context) ([]WindowInfo, error) {
	pids, err := robotgo.Pids()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var out []WindowInfo
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		title := strings.TrimSpace(robotgo.GetTitle(pid))
		if title == "" {
			continue
		}
		w := &Window{pid: pid, title: title}
		out = append(out, WindowInfo{PID: pid, Title: title, Bounds: w.Bounds()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// FindByTitle returns the first window whose title contains title,
// ignoring case.
func (l *Locator) FindByTitle(ctx context.Context, title string) (capture.Window, error) {
	windows, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := matchTitle(windows, title)
	if !ok {
		return nil, fmt.Errorf("%w: no window title contains %q", capture.ErrWindowNotFound, title)
	}
	l.logger.Debug("matched window", "pid", info.PID, "title", info.Title)
	return &Window{pid: info.PID, title: info.Title}, nil
}

// matchTitle prefers an exact title match over a substring match.
func matchTitle(windows []WindowInfo, title string) (WindowInfo, bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return WindowInfo{}, false
	}
	for _, w := range windows {
		if strings.ToLower(w.Title) == want {
			return w, true
		}
	}
	for _, w := range windows {
		if strings.Contains(strings.ToLower(w.Title), want) {
			return w, true
		}
	}
	return WindowInfo{}, false
}

// Keyboard sends key taps to the focused window.
type Keyboard struct{}

// SendKey taps key, e.g. "right" or "pagedown".
func (Keyboard) SendKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("failed to send key %q: %w", key, err)
	}
	return nil
}

// Pointer reads the mouse position.
type Pointer struct{}

// Position returns the current mouse position in screen coordinates.
func (Pointer) Position() image.Point {
	x, y := robotgo.Location()
	return image.Pt(x, y)
}

// Capturer grabs screen rectangles.
type Capturer struct{}

// Capture returns the pixels of r.
func (Capturer) Capture(ctx context.Context, r region.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.Valid() {
		return nil, fmt.Errorf("invalid capture region %s: %w", r, region.ErrEmptyRegion)
	}
	img, err := screenshot.CaptureRect(r.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", r, err)
	}
	return img, nil
}

var (
	_ capture.WindowLocator  = (*Locator)(nil)
	_ capture.Window         = (*Window)(nil)
	_ capture.InputInjector  = Keyboard{}
	_ capture.ScreenCapturer = Capturer{}
)
