package downloader

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrInvalidRequest is matched by service errors that reject the request
// itself, as opposed to failing to deliver it.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorType represents different categories of download session errors
type ErrorType int

const (
	ErrorStart ErrorType = iota
	ErrorStream
	ErrorCancel
	ErrorNetworkFailure
	ErrorTimeout
	ErrorInvalidRequest
	ErrorUnknown
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorStart:
		return "start_failure"
	case ErrorStream:
		return "stream_failure"
	case ErrorCancel:
		return "cancel_failure"
	case ErrorNetworkFailure:
		return "network_failure"
	case ErrorTimeout:
		return "timeout"
	case ErrorInvalidRequest:
		return "invalid_request"
	case ErrorUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// DownloadError represents a structured error raised outside the
// consumer loop (starting, opening the stream, cancelling).
type DownloadError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (de *DownloadError) Error() string {
	if de.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", de.Type.String(), de.Message, de.Cause)
	}
	return fmt.Sprintf("%s: %s", de.Type.String(), de.Message)
}

// Unwrap returns the underlying cause error
func (de *DownloadError) Unwrap() error {
	return de.Cause
}

// NewDownloadError creates a new DownloadError with the specified type and message
func NewDownloadError(errorType ErrorType, message string) *DownloadError {
	return &DownloadError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewDownloadErrorWithCause creates a new DownloadError with a cause
func NewDownloadErrorWithCause(errorType ErrorType, message string, cause error) *DownloadError {
	return &DownloadError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (de *DownloadError) WithContext(key string, value interface{}) *DownloadError {
	if de.Context == nil {
		de.Context = make(map[string]interface{})
	}
	de.Context[key] = value
	return de
}

// IsType checks if the error is of a specific type
func (de *DownloadError) IsType(errorType ErrorType) bool {
	return de.Type == errorType
}

// IsDownloadError checks if an error chain holds a DownloadError and,
// optionally, whether it is one of the given types.
func IsDownloadError(err error, errorType ...ErrorType) bool {
	var de *DownloadError
	if !errors.As(err, &de) {
		return false
	}
	if len(errorType) == 0 {
		return true
	}
	for _, et := range errorType {
		if de.Type == et {
			return true
		}
	}
	return false
}

// classifyError picks the error type for a service failure. Failures that
// match no category keep fallback.
func classifyError(err error, fallback ErrorType) ErrorType {
	var netErr net.Error
	switch {
	case err == nil:
		return ErrorUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	case errors.Is(err, ErrInvalidRequest):
		return ErrorInvalidRequest
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorNetworkFailure
	default:
		return fallback
	}
}
