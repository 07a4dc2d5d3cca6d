// Package hotkey watches for a global key press while the capture loop owns
// the keyboard focus of another window.
package hotkey

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// listenFunc registers fn for key and returns a function that stops listening.
type listenFunc func(key string, fn func()) (stop func())

// listen is replaced in tests; the real hook needs a desktop session.
var listen listenFunc = gohookListen

// WithAbort returns a context that is cancelled when key is pressed anywhere
// on the desktop, or when parent is done. An empty key disables the hotkey.
// stop must be called to release the global hook.
func WithAbort(parent context.Context, key string, logger *slog.Logger) (ctx context.Context, stop func()) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)

	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ctx, cancel
	}

	release := listen(key, func() {
		if ctx.Err() == nil {
			logger.Info("abort key pressed, stopping capture", "key", key)
		}
		cancel()
	})
	logger.Info("press key to stop capturing early", "key", key)

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			release()
			cancel()
		})
	}
}

func gohookListen(key string, fn func()) func() {
	hook.Register(hook.KeyDown, []string{key}, func(hook.Event) {
		fn()
	})
	done := hook.Process(hook.Start())
	return func() {
		hook.End()
		go func() { <-done }()
	}
}
