package log

import (
	"context"
	"fmt"
	"log/slog"
)

// TerminalHandler prints colorful log records to stdout.
type TerminalHandler struct {
	lvl       slog.Level
	attrs     []slog.Attr
	component string
}

// NewTerminalHandler creates a terminal log handler that
// emits records at or above the given level.
func NewTerminalHandler(lvl slog.Level) *TerminalHandler {
	return &TerminalHandler{
		lvl:       lvl,
		attrs:     []slog.Attr{},
		component: "[]",
	}
}

func (h *TerminalHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.lvl
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	color := ""
	switch r.Level {
	case slog.LevelInfo:
		color = "\x1b[32m" // green
	case slog.LevelWarn:
		color = "\x1b[33m" // yellow
	case slog.LevelError:
		color = "\x1b[31m" // red
	}

	time := ""
	if !r.Time.IsZero() {
		time = fmt.Sprintf("[%s]", r.Time.Format("Jan 02|15:04:05.000"))
	}

	attrs := ""
	r.Attrs(func(a slog.Attr) bool {
		attrs += fmt.Sprintf("[%s=%s] ", a.Key, a.Value)
		return true
	})

	_, err := fmt.Println(color, time, r.Level.String(), h.component, r.Message, attrs)
	return err
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, attr := range attrs {
		if attr.Key == "component" {
			component = fmt.Sprintf("[%s]", attr.Value)
		}
	}

	return &TerminalHandler{
		lvl:       h.lvl,
		attrs:     append(h.attrs, attrs...),
		component: component,
	}
}

func (h *TerminalHandler) WithGroup(_ string) slog.Handler {
	panic("not implemented")
}
