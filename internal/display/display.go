// Package display renders line-oriented console output for the run loop.
package display

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#5FAFAF") // teal accent
	secondaryColor = lipgloss.Color("#666666") // gray for secondary text
	successColor   = lipgloss.Color("#87AF87") // muted sage
	errorColor     = lipgloss.Color("#AF5F5F") // muted terracotta
	warnColor      = lipgloss.Color("#AFAF5F") // muted amber

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(secondaryColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)
)

// Display writes styled status lines to a writer.
type Display struct {
	w io.Writer
}

// New creates a display writing to w.
func New(w io.Writer) *Display {
	return &Display{w: w}
}

// Header prints a bold section header.
func (d *Display) Header(format string, args ...interface{}) {
	fmt.Fprintln(d.w, headerStyle.Render(fmt.Sprintf(format, args...)))
}

// Info prints a plain status line.
func (d *Display) Info(format string, args ...interface{}) {
	fmt.Fprintf(d.w, format+"\n", args...)
}

// Subtle prints secondary detail like file locations.
func (d *Display) Subtle(format string, args ...interface{}) {
	fmt.Fprintln(d.w, subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// Success prints a positive outcome.
func (d *Display) Success(format string, args ...interface{}) {
	fmt.Fprintln(d.w, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a recoverable problem.
func (d *Display) Warn(format string, args ...interface{}) {
	fmt.Fprintln(d.w, warnStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints a failure.
func (d *Display) Error(format string, args ...interface{}) {
	fmt.Fprintln(d.w, errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Iteration prints the banner separating loop iterations.
func (d *Display) Iteration(n, max int, task string) {
	d.Header("\n=== Iteration %d/%d: %s ===", n, max, task)
}

// FormatDuration renders a duration as HH:MM:SS or MM:SS.
func FormatDuration(dur time.Duration) string {
	dur = dur.Round(time.Second)
	h := dur / time.Hour
	dur -= h * time.Hour
	m := dur / time.Minute
	dur -= m * time.Minute
	s := dur / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
