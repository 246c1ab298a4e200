package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// logBuffer keeps the newest formatted log lines. Writers may be on any goroutine.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
	dirty chan struct{}
	now   func() time.Time
}

func newLogBuffer(max int) *logBuffer {
	return &logBuffer{
		max:   max,
		dirty: make(chan struct{}, 1),
		now:   time.Now,
	}
}

func (b *logBuffer) add(message, level string) {
	var color string
	var icon string

	switch level {
	case "error":
		color = "[red]"
		icon = "❌"
	case "warning":
		color = "[yellow]"
		icon = "⚠️"
	case "command":
		color = "[cyan]"
		icon = ">"
	default:
		color = "[white]"
		icon = "ℹ️"
	}

	entry := fmt.Sprintf("%s[%s] %s %s[white]", color, b.now().Format("15:04:05"), icon, tview.Escape(message))

	b.mu.Lock()
	b.lines = append(b.lines, entry)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
	b.mu.Unlock()

	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

func (b *logBuffer) clear() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()

	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

func (b *logBuffer) text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}

// logWriter feeds zap console output into the log panel, one entry per line
type logWriter struct {
	buf *logBuffer
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		w.buf.add(line, levelOf(line))
	}
	return len(p), nil
}

// levelOf picks the panel color from a console-encoded zap line
func levelOf(line string) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		if i > 2 {
			break
		}
		switch strings.ToUpper(f) {
		case "ERROR", "DPANIC", "PANIC", "FATAL":
			return "error"
		case "WARN":
			return "warning"
		}
	}
	return "info"
}
