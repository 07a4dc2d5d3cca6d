// Package capture drives an e-reader window page by page and stores each
// page as a frame until the reader stops advancing.
//
// The loop never talks to the desktop directly. Window lookup, screen
// capture and key injection are interfaces so the loop can run against
// fakes in tests and against robotgo/screenshot in the CLI.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kodiwosan/pdf-converter/internal/frames"
	"github.com/kodiwosan/pdf-converter/internal/region"
)

var (
	// ErrWindowNotFound is returned when no window matches the requested title.
	ErrWindowNotFound = errors.New("window not found")

	// ErrTimeout is returned when a desktop call does not finish in time.
	ErrTimeout = errors.New("desktop call timed out")
)

// Window is a top-level window on screen.
type Window interface {
	Title() string
	Bounds() region.Region
	Minimized() bool
	Restore(ctx context.Context) error
	Activate(ctx context.Context) error
}

// WindowLocator finds windows by title.
type WindowLocator interface {
	FindByTitle(ctx context.Context, title string) (Window, error)
}

// ScreenCapturer grabs the pixels of a screen rectangle.
type ScreenCapturer interface {
	Capture(ctx context.Context, r region.Region) (image.Image, error)
}

// InputInjector sends key presses to the focused window.
type InputInjector interface {
	SendKey(ctx context.Context, key string) error
}

// Outcome is how a capture run ended.
type Outcome string

const (
	// OutcomeEndOfDocument means the page stopped changing after a key press.
	OutcomeEndOfDocument Outcome = "end_of_document"
	// OutcomeSafetyLimit means the page limit was reached before the end.
	OutcomeSafetyLimit Outcome = "safety_limit"
	// OutcomeCancelled means the context was cancelled mid-run.
	OutcomeCancelled Outcome = "cancelled"
)

// Result summarizes a finished capture run.
type Result struct {
	Frames  []frames.Frame `json:"frames" yaml:"frames"`
	Pages   int            `json:"pages" yaml:"pages"`
	Outcome Outcome        `json:"outcome" yaml:"outcome"`
}

// CaptureError is returned when a desktop operation keeps failing after retries.
type CaptureError struct {
	Op   string // "capture" or "send_key"
	Page int
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s failed on page %d: %v", e.Op, e.Page, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
