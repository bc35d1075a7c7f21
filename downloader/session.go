package downloader

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Session runs one download from start to a terminal Outcome: start the
// download, open its progress stream, watch for an interrupt while the
// consumer folds events, then clean up.
type Session struct {
	service    DownloadService
	renderer   Renderer
	logger     *zap.Logger
	interrupts <-chan os.Signal
	release    func()
	opts       []ConsumerOption
	onStarted  func(handle DownloadHandle)
}

// SessionConfig holds the collaborators of a Session
type SessionConfig struct {
	Service  DownloadService
	Renderer Renderer
	Logger   *zap.Logger
	// Interrupts feeds the cancellation watcher. Nil disables it.
	Interrupts <-chan os.Signal
	// Release runs after the watcher consumed its interrupt
	Release  func()
	Consumer []ConsumerOption
	// OnStarted is called with the handle once the server accepted the download
	OnStarted func(handle DownloadHandle)
}

// NewSession creates a Session from cfg
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		service:    cfg.Service,
		renderer:   cfg.Renderer,
		logger:     logger,
		interrupts: cfg.Interrupts,
		release:    cfg.Release,
		opts:       cfg.Consumer,
		onStarted:  cfg.OnStarted,
	}
}

// Run executes the session. A non-nil error means the session never got
// as far as consuming events; otherwise the Outcome describes how it ended.
func (s *Session) Run(ctx context.Context, req DownloadRequest) (Outcome, error) {
	logger := s.logger.With(zap.String("correlation_id", uuid.NewString()),
		zap.String("model", req.ModelName))

	handle, err := s.service.Start(ctx, req)
	if err != nil {
		logger.Debug("failed to start download", zap.Error(err))
		return Outcome{}, NewDownloadErrorWithCause(classifyError(err, ErrorStart), "failed to start download", err).
			WithContext("phase", "start").
			WithContext("model_name", req.ModelName)
	}
	if handle.ID == "" {
		return Outcome{}, NewDownloadError(ErrorStart, "server accepted the download without an id").
			WithContext("phase", "start").
			WithContext("model_name", req.ModelName)
	}
	logger = logger.With(zap.String("download_id", handle.ID))
	logger.Info("download started")
	if s.onStarted != nil {
		s.onStarted(handle)
	}

	stream, err := s.service.OpenProgressStream(ctx, handle.ID)
	if err != nil {
		logger.Warn("failed to open progress stream; the download may still be running on the server", zap.Error(err))
		return Outcome{}, NewDownloadErrorWithCause(classifyError(err, ErrorStream), "failed to open progress stream", err).
			WithContext("phase", "stream").
			WithContext("download_id", handle.ID)
	}

	watchCtx, stopWatching := context.WithCancel(ctx)
	var (
		g       errgroup.Group
		watched WatchResult
	)
	if s.interrupts != nil {
		watcher := NewWatcher(s.interrupts, s.service, s.renderer, logger, s.release)
		g.Go(func() error {
			watched = watcher.Watch(watchCtx, handle.ID)
			return watched.Err
		})
	}

	outcome := NewConsumer(s.renderer, logger, s.opts...).Consume(ctx, stream)

	stopWatching()
	if err := stream.Close(); err != nil {
		logger.Debug("closing progress stream", zap.Error(err))
	}
	cancelErr := g.Wait()
	if watched.Signalled {
		logger.Info("cancellation was requested during the session",
			zap.Bool("cancel_request_ok", cancelErr == nil),
			zap.Stringer("outcome", outcome.Kind))
	}

	logger.Info("download session ended",
		zap.Stringer("outcome", outcome.Kind),
		zap.String("reason", outcome.Reason),
		zap.Int("events", outcome.Events))
	s.renderer.Outcome(outcome)
	return outcome, nil
}
