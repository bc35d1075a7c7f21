package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Output prints operator-facing messages. Styling is dropped when color
// is disabled.
type Output struct {
	w io.Writer

	header    lipgloss.Style
	subheader lipgloss.Style
	key       lipgloss.Style
	success   lipgloss.Style
	warning   lipgloss.Style
	info      lipgloss.Style
	muted     lipgloss.Style
}

// NewOutput creates an Output writing to w
func NewOutput(w io.Writer, noColor bool) *Output {
	o := &Output{
		w:         w,
		header:    lipgloss.NewStyle(),
		subheader: lipgloss.NewStyle(),
		key:       lipgloss.NewStyle(),
		success:   lipgloss.NewStyle(),
		warning:   lipgloss.NewStyle(),
		info:      lipgloss.NewStyle(),
		muted:     lipgloss.NewStyle(),
	}
	if noColor {
		return o
	}

	o.header = o.header.Bold(true).Foreground(lipgloss.Color("#4ade80"))
	o.subheader = o.subheader.Bold(true).Foreground(lipgloss.Color("#ffffff"))
	o.key = o.key.Foreground(lipgloss.Color("#909090"))
	o.success = o.success.Foreground(lipgloss.Color("#4ade80"))
	o.warning = o.warning.Foreground(lipgloss.Color("#fbbf24"))
	o.info = o.info.Foreground(lipgloss.Color("#60a5fa"))
	o.muted = o.muted.Foreground(lipgloss.Color("#909090"))
	return o
}

// Header prints a section title
func (o *Output) Header(title string) {
	fmt.Fprintln(o.w, o.header.Render(title))
	fmt.Fprintln(o.w, o.muted.Render(strings.Repeat("─", lipgloss.Width(title))))
}

// Subheader prints a sub-section title
func (o *Output) Subheader(title string) {
	fmt.Fprintln(o.w, o.subheader.Render(title))
}

// KeyValue prints an aligned key/value pair
func (o *Output) KeyValue(key, value string) {
	fmt.Fprintf(o.w, "  %s %s\n", o.key.Render(fmt.Sprintf("%-18s", key+":")), value)
}

// Success prints a success line
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.w, o.success.Render(msg))
}

// Warning prints a warning line
func (o *Output) Warning(msg string) {
	fmt.Fprintln(o.w, o.warning.Render("! "+msg))
}

// Info prints an informational line
func (o *Output) Info(msg string) {
	fmt.Fprintln(o.w, o.info.Render(msg))
}

// Progress prints the start of a step; ProgressDone finishes the line
func (o *Output) Progress(step string) {
	fmt.Fprint(o.w, o.muted.Render(step+"..."))
}

// ProgressDone finishes a line started by Progress
func (o *Output) ProgressDone() {
	fmt.Fprintln(o.w, " "+o.success.Render("done"))
}

// ProgressFailed finishes a line started by Progress after a failure
func (o *Output) ProgressFailed() {
	fmt.Fprintln(o.w, " "+o.warning.Render("failed"))
}

// Blank prints an empty line
func (o *Output) Blank() {
	fmt.Fprintln(o.w)
}

// Table prints rows under a header line
func (o *Output) Table(headers []string, rows [][]string) {
	cell := lipgloss.NewStyle().Padding(0, 1)
	head := o.subheader.Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(o.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return cell
		})
	fmt.Fprintln(o.w, t.Render())
}
