package downloader

import (
	"fmt"
)

// DownloadStatus is the server-reported state of a download session
type DownloadStatus int

const (
	StatusStarted DownloadStatus = iota
	StatusInProgress
	StatusPaused
	StatusResumed
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var statusNames = map[DownloadStatus]string{
	StatusStarted:    "started",
	StatusInProgress: "in_progress",
	StatusPaused:     "paused",
	StatusResumed:    "resumed",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
	StatusCancelled:  "cancelled",
}

// String returns the wire representation of the status
func (s DownloadStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the status ends the session
func (s DownloadStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler
func (s DownloadStatus) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown download status %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *DownloadStatus) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown download status %q", string(text))
}

// EventType tags a DownloadEvent. It mirrors DownloadStatus, plus the
// progress and per-file markers the server sends between status changes.
type EventType string

const (
	EventStarted       EventType = "started"
	EventProgress      EventType = "progress"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventFileCompleted EventType = "file_completed"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
	EventCancelled     EventType = "cancelled"
)

// DownloadHandle identifies one download session on the server
type DownloadHandle struct {
	ID                 string  `json:"download_id"`
	EstimatedSizeBytes *uint64 `json:"estimated_size_bytes,omitempty"`
}

// DownloadRequest is the payload sent to start a download
type DownloadRequest struct {
	ModelName       string  `json:"model_name"`
	FormatHint      *string `json:"format_hint,omitempty"`
	ForceRedownload bool    `json:"force_redownload"`
	CustomDirectory *string `json:"custom_directory,omitempty"`
}

// ProgressSnapshot is the numeric state of a transfer at one point in time.
// TotalBytes == 0 means the total is unknown.
type ProgressSnapshot struct {
	Percentage      float64  `json:"percentage"`
	DownloadedBytes uint64   `json:"downloaded_bytes"`
	TotalBytes      uint64   `json:"total_bytes"`
	SpeedBps        float64  `json:"speed_bps"`
	ETASeconds      *float64 `json:"eta_seconds,omitempty"`
	CurrentFile     *string  `json:"current_file,omitempty"`
	FilesCompleted  uint64   `json:"files_completed"`
	TotalFiles      uint64   `json:"total_files"`
}

// DownloadState is the server's view of the session carried by each event
type DownloadState struct {
	Status       DownloadStatus   `json:"status"`
	Progress     ProgressSnapshot `json:"progress"`
	ErrorMessage *string          `json:"error_message,omitempty"`
}

// DownloadEvent is one item of the progress stream
type DownloadEvent struct {
	EventType EventType     `json:"event_type"`
	State     DownloadState `json:"state"`
}

// StreamItem is what an EventStream delivers: either a decoded event or
// the error that ended the stream.
type StreamItem struct {
	Event DownloadEvent
	Err   error
}

// OutcomeKind is the terminal result of a session
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeFailed
	OutcomeCancelled
	OutcomeStreamEnded
	OutcomeStreamError
	OutcomeTimedOut
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeStreamEnded:
		return "stream_ended"
	case OutcomeStreamError:
		return "stream_error"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the single value a session ends with
type Outcome struct {
	Kind OutcomeKind
	// Reason is the server error message for Failed and the decode or
	// transport error for StreamError.
	Reason string
	// Last is the last successfully decoded snapshot.
	Last     ProgressSnapshot
	Events   int
	Timeouts int
}

// Success reports whether the download finished
func (o Outcome) Success() bool {
	return o.Kind == OutcomeCompleted
}
