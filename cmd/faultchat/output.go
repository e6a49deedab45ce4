package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// tone picks the style of a line of CLI output.
type tone int

const (
	toneStep tone = iota
	toneSuccess
	toneWarning
	toneError
	toneLabel
	toneID
)

var (
	toneColors = map[tone]lipgloss.Color{
		toneStep:    lipgloss.Color("#2196F3"),
		toneSuccess: lipgloss.Color("#8BC34A"),
		toneWarning: lipgloss.Color("#FFC107"),
		toneError:   lipgloss.Color("#e53935"),
		toneID:      lipgloss.Color("#4db6ac"),
	}
	toneMarks = map[tone]string{
		toneStep:    "→",
		toneSuccess: "✓",
		toneWarning: "⚠",
		toneError:   "✗",
	}
)

// paint styles s for the terminal unless --no-color or NO_COLOR is in effect.
func paint(t tone, s string) string {
	if noColor {
		return s
	}
	style := lipgloss.NewStyle()
	if t == toneLabel {
		style = style.Bold(true)
	} else {
		style = style.Foreground(toneColors[t])
	}
	return style.Render(s)
}

// console writes status lines. Commands use stderr so stdout stays clean for
// history JSON and MCP frames.
type console struct {
	w io.Writer
}

var stderr = console{w: os.Stderr}

func (c console) note(t tone, format string, args ...any) {
	fmt.Fprintln(c.w, paint(t, toneMarks[t]+" "+fmt.Sprintf(format, args...)))
}

func (c console) step(format string, args ...any)    { c.note(toneStep, format, args...) }
func (c console) success(format string, args ...any) { c.note(toneSuccess, format, args...) }
func (c console) warn(format string, args ...any)    { c.note(toneWarning, format, args...) }
func (c console) fail(format string, args ...any)    { c.note(toneError, format, args...) }

// field prints an aligned "label: value" line.
func (c console) field(label, format string, args ...any) {
	fmt.Fprintf(c.w, "  %s %s\n", paint(toneLabel, label+":"), fmt.Sprintf(format, args...))
}

// health prints the diagnosis service line, coloured by reachability.
func (c console) health(baseURL string, err error) {
	if err != nil {
		c.field("Service", "%s", paint(toneError, fmt.Sprintf("unreachable at %s (%v)", baseURL, err)))
		return
	}
	c.field("Service", "%s", paint(toneSuccess, "healthy at "+baseURL))
}

// shortID trims a dialogue id for listings; `history show` accepts the prefix.
func shortID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return paint(toneID, id)
}
