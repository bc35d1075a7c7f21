package downloader

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StatusLineSeparator joins the fields of a status line
const StatusLineSeparator = " | "

// maxETASeconds is the largest ETA shown; larger values are dropped
const maxETASeconds = 1000 * 60 * 60

// Position returns the bar position for a snapshot, clamped to 0..100
func Position(p ProgressSnapshot) int {
	pct := p.Percentage
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// StatusLine composes the live status line from whatever fields the
// snapshot carries: bytes, speed, ETA, current file, files counter.
func StatusLine(p ProgressSnapshot) string {
	var fields []string

	if p.TotalBytes > 0 {
		downloaded := p.DownloadedBytes
		if downloaded > p.TotalBytes {
			downloaded = p.TotalBytes
		}
		fields = append(fields, FormatBytes(downloaded)+"/"+FormatBytes(p.TotalBytes))
	} else if p.DownloadedBytes > 0 {
		fields = append(fields, FormatBytes(p.DownloadedBytes))
	}

	if p.SpeedBps > 0 && !math.IsInf(p.SpeedBps, 0) {
		fields = append(fields, FormatBytes(uint64(p.SpeedBps))+"/s")
	}

	if p.ETASeconds != nil && *p.ETASeconds > 0 && *p.ETASeconds <= maxETASeconds {
		eta := time.Duration(*p.ETASeconds * float64(time.Second)).Round(time.Second)
		fields = append(fields, "ETA "+eta.String())
	}

	if p.CurrentFile != nil && *p.CurrentFile != "" {
		fields = append(fields, *p.CurrentFile)
	}

	if p.TotalFiles > 0 {
		fields = append(fields, fmt.Sprintf("files %d/%d", p.FilesCompleted, p.TotalFiles))
	}

	return strings.Join(fields, StatusLineSeparator)
}

// FormatBytes formats byte count into human-readable binary units
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// StatusAnnouncement returns the one-line message for a status change.
// In-progress needs no announcement beyond the live display.
func StatusAnnouncement(event DownloadEvent) string {
	switch event.State.Status {
	case StatusStarted:
		return "Download started"
	case StatusInProgress:
		return ""
	case StatusPaused:
		return "Download paused"
	case StatusResumed:
		return "Download resumed"
	case StatusCompleted:
		return "Download completed!"
	case StatusFailed:
		if msg := event.State.ErrorMessage; msg != nil && *msg != "" {
			return "Download failed: " + *msg
		}
		return "Download failed"
	case StatusCancelled:
		return "Download cancelled"
	default:
		return ""
	}
}

// FileCompletedAnnouncement returns the message for one finished file
func FileCompletedAnnouncement(p ProgressSnapshot) string {
	msg := "File completed"
	if p.CurrentFile != nil && *p.CurrentFile != "" {
		msg += ": " + *p.CurrentFile
	}
	if p.TotalFiles > 0 {
		msg += fmt.Sprintf(" (%d/%d)", p.FilesCompleted, p.TotalFiles)
	}
	return msg
}

// WaitingMessage returns the warning shown after a silent wait
func WaitingMessage(timeouts, budget int) string {
	return fmt.Sprintf("No progress update received, still waiting (timeout %d/%d)", timeouts, budget)
}

// OutcomeMessage returns the final message for an outcome and, for
// non-success outcomes, a suggestion for the operator.
func OutcomeMessage(o Outcome) (message, hint string) {
	switch o.Kind {
	case OutcomeCompleted:
		return "Download completed!", ""
	case OutcomeFailed:
		if o.Reason != "" {
			return "Download failed: " + o.Reason, "Check server logs for detailed error information"
		}
		return "Download failed", "Check server logs for detailed error information"
	case OutcomeCancelled:
		return "Download cancelled", ""
	case OutcomeStreamEnded:
		return "Progress stream ended before the download finished",
			"The download may still be running; check server logs"
	case OutcomeStreamError:
		return "Progress stream error: " + o.Reason,
			"Verify network connectivity and check server logs"
	case OutcomeTimedOut:
		return fmt.Sprintf("No progress updates after %d consecutive waits, giving up", o.Timeouts),
			"The server may be stalled; check server logs"
	default:
		return "Download ended in an unknown state", "Check server logs"
	}
}
