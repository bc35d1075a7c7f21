package downloader

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// WatchResult is what a Watcher reports back when it stops
type WatchResult struct {
	// Signalled is true when an interrupt arrived and a cancel was sent
	Signalled bool
	// Err is the cancel request error, if any
	Err error
}

// Watcher waits for one operator interrupt and turns it into a cancel
// request for the active download. It never re-arms.
type Watcher struct {
	interrupts    <-chan os.Signal
	canceller     Canceller
	renderer      Renderer
	logger        *zap.Logger
	cancelTimeout time.Duration
	release       func()
}

// NewWatcher creates a Watcher listening on interrupts. release, when not
// nil, runs once after the interrupt has been consumed.
func NewWatcher(interrupts <-chan os.Signal, canceller Canceller, renderer Renderer, logger *zap.Logger, release func()) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		interrupts:    interrupts,
		canceller:     canceller,
		renderer:      renderer,
		logger:        logger,
		cancelTimeout: 10 * time.Second,
		release:       release,
	}
}

// Watch blocks until an interrupt arrives or ctx is done. The cancel
// request uses its own deadline so that ending the session does not abort
// a request already in flight.
func (w *Watcher) Watch(ctx context.Context, downloadID string) WatchResult {
	select {
	case <-ctx.Done():
		return WatchResult{}
	case sig, ok := <-w.interrupts:
		if !ok {
			return WatchResult{}
		}
		if w.release != nil {
			w.release()
		}
		w.logger.Info("interrupt received, requesting cancellation",
			zap.Stringer("signal", sig),
			zap.String("download_id", downloadID))
		if w.renderer != nil {
			w.renderer.CancelRequested()
		}

		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cancelTimeout)
		defer cancel()

		if err := w.canceller.Cancel(cancelCtx, downloadID); err != nil {
			w.logger.Warn("cancel request failed",
				zap.String("download_id", downloadID),
				zap.Error(err))
			return WatchResult{
				Signalled: true,
				Err:       NewDownloadErrorWithCause(ErrorCancel, "cancel request failed", err).WithContext("download_id", downloadID),
			}
		}
		return WatchResult{Signalled: true}
	}
}
