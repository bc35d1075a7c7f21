package downloader

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// TerminalOptions configures a TerminalRenderer
type TerminalOptions struct {
	// Output is where the bar and announcements go. Default: os.Stderr
	Output io.Writer
	// Quiet disables the live bar, keeping only one-line announcements
	Quiet bool
	// NoColor disables ANSI styling
	NoColor bool
	// Width of the bar in cells. Default: 30
	Width int
}

// TerminalRenderer implements Renderer with a progress bar and styled
// announcement lines. The watcher goroutine may call CancelRequested while
// the consumer is rendering, so calls are serialized.
type TerminalRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	bar  *progressbar.ProgressBar
	done bool

	infoStyle    lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
}

// NewTerminalRenderer creates a TerminalRenderer
func NewTerminalRenderer(opts TerminalOptions) *TerminalRenderer {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Width <= 0 {
		opts.Width = 30
	}

	r := &TerminalRenderer{
		out:          opts.Output,
		infoStyle:    lipgloss.NewStyle(),
		successStyle: lipgloss.NewStyle(),
		warningStyle: lipgloss.NewStyle(),
		errorStyle:   lipgloss.NewStyle(),
	}
	if !opts.NoColor {
		r.infoStyle = r.infoStyle.Foreground(lipgloss.Color("#60a5fa"))
		r.successStyle = r.successStyle.Foreground(lipgloss.Color("#4ade80")).Bold(true)
		r.warningStyle = r.warningStyle.Foreground(lipgloss.Color("#fbbf24"))
		r.errorStyle = r.errorStyle.Foreground(lipgloss.Color("#f87171")).Bold(true)
	}

	if !opts.Quiet {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(opts.Output),
			progressbar.OptionSetWidth(opts.Width),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionEnableColorCodes(!opts.NoColor),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "",
				BarEnd:        "",
			}),
		)
	}
	return r
}

// Progress moves the bar and refreshes the status line
func (r *TerminalRenderer) Progress(snapshot ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil || r.done {
		return
	}
	// Position first so the frame drawn by Describe is consistent
	_ = r.bar.Set(Position(snapshot))
	r.bar.Describe(StatusLine(snapshot))
}

// Announce prints the status change message, if the status has one
func (r *TerminalRenderer) Announce(event DownloadEvent) {
	msg := StatusAnnouncement(event)
	if msg == "" {
		return
	}

	style := r.infoStyle
	switch event.State.Status {
	case StatusCompleted:
		style = r.successStyle
	case StatusFailed:
		style = r.errorStyle
	case StatusPaused, StatusCancelled:
		style = r.warningStyle
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(style.Render(msg))
}

// FileCompleted prints a per-file completion line
func (r *TerminalRenderer) FileCompleted(snapshot ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.infoStyle.Render(FileCompletedAnnouncement(snapshot)))
}

// Waiting prints a timeout warning
func (r *TerminalRenderer) Waiting(timeouts, budget int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.warningStyle.Render(WaitingMessage(timeouts, budget)))
}

// CancelRequested acknowledges the operator's interrupt
func (r *TerminalRenderer) CancelRequested() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.warningStyle.Render("Cancellation requested, waiting for the server to confirm..."))
}

// Outcome clears the bar and prints the final message for outcomes that
// no status event has already announced.
func (r *TerminalRenderer) Outcome(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil && !r.done {
		_ = r.bar.Clear()
	}
	r.done = true

	switch outcome.Kind {
	case OutcomeStreamEnded, OutcomeStreamError, OutcomeTimedOut:
		msg, _ := OutcomeMessage(outcome)
		fmt.Fprintln(r.out, r.warningStyle.Render(msg))
	}
}

// println writes a line above the live bar. Callers hold r.mu.
func (r *TerminalRenderer) println(line string) {
	if r.bar != nil && !r.done {
		_ = r.bar.Clear()
		fmt.Fprintln(r.out, line)
		_ = r.bar.RenderBlank()
		return
	}
	fmt.Fprintln(r.out, line)
}
