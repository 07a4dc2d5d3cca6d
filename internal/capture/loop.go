package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kodiwosan/pdf-converter/internal/frames"
	"github.com/kodiwosan/pdf-converter/internal/region"
)

// DefaultMaxPages stops a run that never reaches a repeated page.
const DefaultMaxPages = 2000

// Config controls the page-turning loop.
type Config struct {
	NextPageKey string        // Key that advances one page
	SettleDelay time.Duration // Wait after each key press before capturing
	MaxPages    int           // Safety limit; 0 means DefaultMaxPages
	Retries     int           // Extra attempts per desktop call
	RetryDelay  time.Duration // Pause between attempts
	CallTimeout time.Duration // Per-attempt limit; 0 disables the limit
}

// Loop captures pages until the reader stops advancing.
type Loop struct {
	capturer ScreenCapturer
	keys     InputInjector
	store    *frames.Store
	clock    Clock
	cfg      Config
	logger   *slog.Logger
	policy   callPolicy
}

// NewLoop creates a capture loop writing into store. A nil clock uses the
// wall clock and a nil logger uses slog.Default().
func NewLoop(capturer ScreenCapturer, keys InputInjector, store *frames.Store, clock Clock, cfg Config, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.NextPageKey == "" {
		cfg.NextPageKey = "right"
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	logger = logger.With("component", "capture")
	return &Loop{
		capturer: capturer,
		keys:     keys,
		store:    store,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		policy: callPolicy{
			retries: cfg.Retries,
			delay:   cfg.RetryDelay,
			timeout: cfg.CallTimeout,
			logger:  logger,
		},
	}
}

// Run captures r repeatedly, turning the page between captures.
//
// The first page is always stored. A capture identical to the previous one
// means the reader did not advance: it is discarded and the run ends with
// OutcomeEndOfDocument. Reaching MaxPages ends with OutcomeSafetyLimit and
// cancellation with OutcomeCancelled; frames already stored are kept in
// every case, including when an error is returned.
func (l *Loop) Run(ctx context.Context, r region.Region) (*Result, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid capture region %s: %w", r, region.ErrEmptyRegion)
	}
	if n, err := l.store.Count(); err != nil {
		return nil, err
	} else if n != 0 {
		return nil, fmt.Errorf("frames directory %s already holds %d frames", l.store.Dir(), n)
	}

	res := &Result{}
	finish := func(o Outcome) (*Result, error) {
		res.Outcome = o
		res.Pages = len(res.Frames)
		l.logger.Info("capture finished", "outcome", o, "pages", res.Pages)
		return res, nil
	}

	var prev image.Image
	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled)
		}

		img, err := l.capture(ctx, r, page)
		if err != nil {
			if ctx.Err() != nil {
				return finish(OutcomeCancelled)
			}
			res.Pages = len(res.Frames)
			return res, err
		}

		frame, err := l.store.Write(page, img)
		if err != nil {
			res.Pages = len(res.Frames)
			return res, err
		}

		if prev != nil && frames.IsSameImage(prev, img) {
			if err := l.store.RemoveLast(); err != nil {
				res.Pages = len(res.Frames)
				return res, fmt.Errorf("failed to discard repeated page: %w", err)
			}
			l.logger.Debug("page did not change, end of document", "page", page)
			return finish(OutcomeEndOfDocument)
		}
		res.Frames = append(res.Frames, frame)
		l.logger.Info("captured page", "page", page)

		if page >= l.cfg.MaxPages {
			l.logger.Warn("safety limit reached, stopping capture", "max_pages", l.cfg.MaxPages)
			return finish(OutcomeSafetyLimit)
		}

		if _, err := call(ctx, l.policy, "send_key", page, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, l.keys.SendKey(ctx, l.cfg.NextPageKey)
		}); err != nil {
			if ctx.Err() != nil {
				return finish(OutcomeCancelled)
			}
			res.Pages = len(res.Frames)
			return res, err
		}

		if err := l.clock.Sleep(ctx, l.cfg.SettleDelay); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return finish(OutcomeCancelled)
			}
			res.Pages = len(res.Frames)
			return res, err
		}
		prev = img
	}
}

func (l *Loop) capture(ctx context.Context, r region.Region, page int) (image.Image, error) {
	return call(ctx, l.policy, "capture", page, func(ctx context.Context) (image.Image, error) {
		img, err := l.capturer.Capture(ctx, r)
		if err != nil {
			return nil, err
		}
		if img == nil || img.Bounds().Empty() {
			return nil, errors.New("capture returned an empty image")
		}
		return img, nil
	})
}
