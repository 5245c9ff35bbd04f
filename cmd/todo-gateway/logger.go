// ABOUTME: slog setup for the todo-gateway binary
// ABOUTME: JSON output for machines, a component-tagged color handler for terminals

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/todo-gateway/internal/config"
)

// componentKey is the attr every package attaches to its logger. The
// terminal handler prints it as a tag instead of a key=value pair.
const componentKey = "component"

// Attr keys whose values identify a row or a user; highlighted so a turn can
// be followed through the log by eye.
var idKeys = map[string]bool{
	"owner":           true,
	"conversation_id": true,
	"task_id":         true,
	"message_id":      true,
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	return slog.New(newLogHandler(cfg, os.Stdout))
}

func newLogHandler(cfg config.LoggingConfig, out io.Writer) slog.Handler {
	level := parseLevel(cfg.Level)
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
	return &terminalHandler{mu: &sync.Mutex{}, out: out, level: level}
}

// terminalHandler writes one colored line per record:
//
//	15:04:05 INF [conversation] turn completed conversation_id=... tool_calls=1
//
// Derived handlers share the parent's mutex and writer.
type terminalHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Level
	component string
	attrs     []slog.Attr
	groups    []string
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(r.Level))

	component := h.component
	prefix := groupPrefix(h.groups)
	var recordAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if prefix == "" && a.Key == componentKey {
			component = a.Value.String()
			return true
		}
		a.Key = prefix + a.Key
		recordAttrs = append(recordAttrs, a)
		return true
	})

	if component != "" {
		buf.WriteString(color.BlueString(" [" + component + "]"))
	}
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	for _, a := range recordAttrs {
		writeAttr(&buf, a)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERR")
	case level >= slog.LevelWarn:
		return color.YellowString("WRN")
	case level >= slog.LevelInfo:
		return color.CyanString("INF")
	default:
		return color.MagentaString("DBG")
	}
}

func groupPrefix(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return strings.Join(groups, ".") + "."
}

// writeAttr appends " key=value". Values with spaces are quoted so a log
// line stays splittable on whitespace.
func writeAttr(buf *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	value := a.Value.Resolve().String()
	if value == "" || strings.ContainsAny(value, " \t\n\"=") {
		value = strconv.Quote(value)
	}

	buf.WriteString(color.HiBlackString(" " + a.Key + "="))
	base := a.Key[strings.LastIndex(a.Key, ".")+1:]
	switch {
	case base == "error":
		buf.WriteString(color.RedString(value))
	case idKeys[base]:
		buf.WriteString(color.GreenString(value))
	default:
		buf.WriteString(value)
	}
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := groupPrefix(h.groups)
	clone := *h
	clone.attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(clone.attrs, h.attrs)
	for _, a := range attrs {
		if prefix == "" && a.Key == componentKey {
			clone.component = a.Value.String()
			continue
		}
		a.Key = prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *terminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

var _ slog.Handler = (*terminalHandler)(nil)
