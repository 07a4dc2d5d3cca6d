package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/kodiwosan/pdf-converter/internal/config"
	"github.com/kodiwosan/pdf-converter/internal/home"
	"github.com/kodiwosan/pdf-converter/internal/svcctx"
)

// session is one invocation that owns a run directory under the home dir.
// cfg is a private copy so flags can override it.
type session struct {
	id     string
	home   *home.Dir
	cfg    *config.Config
	logger *slog.Logger
}

// newSession applies overrides to a copy of the configuration, then creates
// a run ID with its frames and debug directories.
func newSession(ctx context.Context, overrides ...func(*config.Config) error) (*session, error) {
	h := svcctx.HomeFrom(ctx)
	if h == nil {
		return nil, errors.New("home directory not initialized")
	}
	cfg := *svcctx.ConfigFrom(ctx)
	for _, o := range overrides {
		if err := o(&cfg); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	if err := h.EnsureRunDirs(id); err != nil {
		return nil, fmt.Errorf("failed to prepare run %s: %w", id, err)
	}
	logger := svcctx.LoggerFrom(ctx).With("run_id", id)
	logger.Debug("created run", "dir", h.RunDir(id))
	return &session{
		id:     id,
		home:   h,
		cfg:    &cfg,
		logger: logger,
	}, nil
}

func (s *session) framesDir() string { return s.home.FramesDir(s.id) }

func (s *session) debugDir() string { return s.home.DebugDir(s.id) }

// cleanup removes the run directory when frames are not to be kept. After a
// failed capture the frames stay so the run can be assembled again.
func (s *session) cleanup(capErr error) bool {
	if s.cfg.Output.KeepFrames {
		return false
	}
	if capErr != nil {
		s.logger.Warn("capture failed, frames kept for recovery",
			"frames", s.framesDir(), "hint", "pdf-converter assemble "+s.framesDir())
		return false
	}
	if err := os.RemoveAll(s.home.RunDir(s.id)); err != nil {
		s.logger.Warn("could not remove run directory", "error", err)
		return false
	}
	return true
}
