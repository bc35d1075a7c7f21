package cli

import (
	"context"
	"errors"
	"net"

	"lmo-cli/client"
	"lmo-cli/downloader"
)

// ErrNotCompleted is returned by the download command when the session
// ended without the download finishing. The outcome has already been
// reported, so main only needs to set the exit code.
var ErrNotCompleted = errors.New("download did not complete")

// IsNetworkError checks if an error is a transport-level failure
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &netErr) || errors.As(err, &opErr)
}

// troubleshooting returns suggestions for an error raised before or
// outside the progress loop
func troubleshooting(err error) []string {
	var de *downloader.DownloadError
	if errors.As(err, &de) {
		switch {
		case de.IsType(downloader.ErrorTimeout):
			return []string{
				"The server took too long to answer; raise --timeout if it is busy",
				"Check server logs for detailed error information",
			}
		case de.IsType(downloader.ErrorNetworkFailure):
			return []string{
				"Ensure the server is running: lmo health",
				"Verify network connectivity and the --server address",
			}
		case de.IsType(downloader.ErrorInvalidRequest):
			return []string{
				"Check model name format: organization/model-name",
				"Check the --format and --directory values",
			}
		case de.IsType(downloader.ErrorStream):
			return []string{
				"The download may still be running; check it with lmo status",
				"Cancel it with lmo cancel <download-id> if needed",
				"Check server logs for detailed error information",
			}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return []string{
			"The server took too long to answer; raise --timeout if it is busy",
			"Check server logs for detailed error information",
		}
	case IsNetworkError(err):
		return []string{
			"Ensure the server is running: lmo health",
			"Verify network connectivity and the --server address",
		}
	case errors.Is(err, client.ErrNotFound):
		return []string{
			"Check model name format: organization/model-name",
			"Verify the server version supports model downloads",
		}
	case errors.Is(err, client.ErrBadRequest):
		return []string{
			"Check model name format: organization/model-name",
			"Check the --format and --directory values",
		}
	case errors.Is(err, client.ErrLoadRejected):
		return []string{
			"Check that the model was downloaded: lmo models --local",
			"Free memory by unloading another instance: lmo unload <instance-id>",
		}
	case errors.Is(err, client.ErrCancelRejected):
		return []string{
			"The download may already have finished or been cancelled",
		}
	default:
		return []string{
			"Ensure the server is running: lmo health",
			"Check model name format: organization/model-name",
			"Verify network connectivity",
			"Check server logs for detailed error information",
		}
	}
}

// reportError prints a failed operation with its suggestions
func reportError(out *Output, what string, err error) {
	msg := err.Error()
	var de *downloader.DownloadError
	if errors.As(err, &de) && de.Cause != nil {
		msg = de.Cause.Error()
	}
	out.Warning(what + ": " + msg)
	printSuggestions(out, err)
}

func printSuggestions(out *Output, err error) {
	out.Blank()
	out.Info("Troubleshooting suggestions:")
	for _, s := range troubleshooting(err) {
		out.Info("  • " + s)
	}
}
