package downloader

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWaitTimeout bounds each wait for the next stream event
	DefaultWaitTimeout = 30 * time.Second
	// DefaultMaxTimeouts is how many consecutive silent waits end a session
	DefaultMaxTimeouts = 3
)

// Consumer drives the progress event loop of one session and folds the
// events into a single Outcome.
type Consumer struct {
	waitTimeout time.Duration
	maxTimeouts int
	renderer    Renderer
	logger      *zap.Logger
}

// ConsumerOption configures a Consumer
type ConsumerOption func(*Consumer)

// WithWaitTimeout sets the bounded wait for each event
func WithWaitTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

// WithMaxTimeouts sets the consecutive timeout budget
func WithMaxTimeouts(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxTimeouts = n
		}
	}
}

// NewConsumer creates a Consumer reporting to renderer
func NewConsumer(renderer Renderer, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		waitTimeout: DefaultWaitTimeout,
		maxTimeouts: DefaultMaxTimeouts,
		renderer:    renderer,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume reads stream until a terminal event, stream closure, a stream
// error or the timeout budget runs out. It does not close the stream.
func (c *Consumer) Consume(ctx context.Context, stream EventStream) Outcome {
	var (
		lastStatus *DownloadStatus
		outcome    Outcome
	)

	events := stream.Events()
	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			outcome.Kind = OutcomeStreamError
			outcome.Reason = ctx.Err().Error()
			return outcome

		case item, ok := <-events:
			if !ok {
				c.logger.Debug("progress stream closed without terminal event",
					zap.Int("events", outcome.Events))
				outcome.Kind = OutcomeStreamEnded
				return outcome
			}
			if item.Err != nil {
				c.logger.Warn("progress stream error", zap.Error(item.Err))
				outcome.Kind = OutcomeStreamError
				outcome.Reason = item.Err.Error()
				return outcome
			}

			outcome.Timeouts = 0
			outcome.Events++
			outcome.Last = item.Event.State.Progress
			status := item.Event.State.Status

			c.logger.Debug("progress event",
				zap.String("event_type", string(item.Event.EventType)),
				zap.Stringer("status", status),
				zap.Float64("percentage", item.Event.State.Progress.Percentage),
				zap.Uint64("downloaded_bytes", item.Event.State.Progress.DownloadedBytes))

			c.renderer.Progress(item.Event.State.Progress)
			if lastStatus == nil || *lastStatus != status {
				c.renderer.Announce(item.Event)
				lastStatus = &status
			}
			if item.Event.EventType == EventFileCompleted {
				c.renderer.FileCompleted(item.Event.State.Progress)
			}

			switch status {
			case StatusCompleted:
				outcome.Kind = OutcomeCompleted
				return outcome
			case StatusFailed:
				outcome.Kind = OutcomeFailed
				if msg := item.Event.State.ErrorMessage; msg != nil {
					outcome.Reason = *msg
				}
				return outcome
			case StatusCancelled:
				outcome.Kind = OutcomeCancelled
				return outcome
			}

		case <-timer.C:
			outcome.Timeouts++
			c.logger.Debug("no progress event within wait",
				zap.Duration("wait", c.waitTimeout),
				zap.Int("timeouts", outcome.Timeouts))
			if outcome.Timeouts >= c.maxTimeouts {
				outcome.Kind = OutcomeTimedOut
				return outcome
			}
			c.renderer.Waiting(outcome.Timeouts, c.maxTimeouts)
		}

		resetTimer(timer, c.waitTimeout)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
