package downloader

import (
	"context"
)

// DownloadService is the remote side of a download session
type DownloadService interface {
	// Start asks the server to begin downloading a model
	Start(ctx context.Context, req DownloadRequest) (DownloadHandle, error)

	// OpenProgressStream subscribes to the event stream of a download
	OpenProgressStream(ctx context.Context, downloadID string) (EventStream, error)

	Canceller
}

// Canceller requests cancellation of a running download. Best effort: the
// server may already have finished.
type Canceller interface {
	Cancel(ctx context.Context, downloadID string) error
}

// EventStream is an ordered, closable sequence of download events.
//
// Events delivers decoded events in order. An item with a non-nil Err is
// the last item; a closed channel means the server ended the stream.
type EventStream interface {
	Events() <-chan StreamItem
	Close() error
}

// Renderer receives everything the operator should see. The consumer
// calls it synchronously, so calls arrive in event order.
type Renderer interface {
	// Progress refreshes the live display from a snapshot
	Progress(snapshot ProgressSnapshot)

	// Announce reports a status change once
	Announce(event DownloadEvent)

	// FileCompleted reports that one file of a multi-file model finished
	FileCompleted(snapshot ProgressSnapshot)

	// Waiting reports a silent wait on the stream
	Waiting(timeouts, budget int)

	// CancelRequested reports that the operator asked to cancel
	CancelRequested()

	// Outcome reports how the session ended and releases the display
	Outcome(outcome Outcome)
}
