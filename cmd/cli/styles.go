package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorSuccess   = lipgloss.Color("#10B981") // Green
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorError     = lipgloss.Color("#EF4444") // Red
	colorMuted     = lipgloss.Color("#64748B") // Slate 500
	colorBright    = lipgloss.Color("#F8FAFC") // Slate 50
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBright).
			Background(colorPrimary).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)

	defaultMarker = lipgloss.NewStyle().
			Foreground(colorWarning).
			SetString("★")

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✓ "+msg))
}

func printFailure(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+msg))
}

// statusText colors a job status
func statusText(status string) string {
	switch status {
	case "completed":
		return successStyle.Render(status)
	case "failed":
		return errorStyle.Render(status)
	default:
		return warningStyle.Render(status)
	}
}

// fields renders label/value pairs in a bordered card, skipping empty values
func fields(title string, pairs ...[2]string) string {
	width := 0
	for _, p := range pairs {
		if p[1] != "" && len(p[0]) > width {
			width = len(p[0])
		}
	}

	lines := []string{headerStyle.Render(title)}
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		label := labelStyle.Render(p[0] + ":" + strings.Repeat(" ", width-len(p[0])))
		lines = append(lines, label+" "+p[1])
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
