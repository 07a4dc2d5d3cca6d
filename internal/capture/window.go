package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FocusWindow finds the window whose title contains title, restores it when
// minimized, tries to bring it to the front and waits delay so the reader
// has time to redraw.
func FocusWindow(ctx context.Context, loc WindowLocator, clock Clock, title string, delay time.Duration, logger *slog.Logger) (Window, error) {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := loc.FindByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("failed to find window %q: %w", title, err)
	}
	if w.Minimized() {
		logger.Info("window is minimized, restoring", "title", w.Title())
		if err := w.Restore(ctx); err != nil {
			return nil, fmt.Errorf("failed to restore window %q: %w", w.Title(), err)
		}
	}
	// Some window managers refuse focus requests; capture still works when
	// the window is visible, so this is only a warning.
	if err := w.Activate(ctx); err != nil {
		logger.Warn("could not activate window", "title", w.Title(), "error", err)
	}

	logger.Info("located window", "title", w.Title(), "region", w.Bounds().String())
	if err := clock.Sleep(ctx, delay); err != nil {
		return nil, err
	}
	return w, nil
}
