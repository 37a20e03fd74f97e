package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Attribute keys lifted out of the key=value tail into brackets.
const (
	systemKey = "system"
	runKey    = "run_id"
	runIDLen  = 8
)

// MavenHandler is a slog.Handler that formats logs in Maven-style:
//
//	[LEVEL] [system] [run:0b8f5c1e] [HH:MM:SS] message key=value key="two words"
//
// Top-level system and run_id attributes become brackets. Groups flatten
// to dotted keys.
type MavenHandler struct {
	w         io.Writer
	level     slog.Leveler
	mu        *sync.Mutex
	useColors bool

	system string
	runID  string
	groups []string
	attrs  []slog.Attr // already qualified with the groups open when added
}

// NewMavenHandler creates a new Maven-style handler
func NewMavenHandler(w io.Writer, opts *slog.HandlerOptions) *MavenHandler {
	h := &MavenHandler{
		w:         w,
		level:     slog.LevelInfo,
		mu:        &sync.Mutex{},
		useColors: isTerminal(w),
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// isTerminal checks if the writer is a terminal (for color output)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Enabled reports whether the handler handles records at the given level.
func (h *MavenHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes a log record
func (h *MavenHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	system, runID := h.system, h.runID
	prefix := groupPrefix(h.groups)
	var tail []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if prefix == "" {
			switch a.Key {
			case systemKey:
				system = a.Value.String()
				return true
			case runKey:
				runID = a.Value.String()
				return true
			}
		}
		tail = append(tail, a)
		return true
	})

	h.writeHeader(&buf, r, system, runID)

	for _, a := range h.attrs {
		appendAttr(&buf, "", a)
	}
	for _, a := range tail {
		appendAttr(&buf, prefix, a)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *MavenHandler) writeHeader(buf *strings.Builder, r slog.Record, system, runID string) {
	h.bracket(buf, levelColor(r.Level), levelString(r.Level))
	if system != "" {
		buf.WriteByte(' ')
		h.bracket(buf, "", system)
	}
	if runID != "" {
		if len(runID) > runIDLen {
			runID = runID[:runIDLen]
		}
		buf.WriteByte(' ')
		h.bracket(buf, colorBold, "run:"+runID)
	}
	if !r.Time.IsZero() {
		buf.WriteByte(' ')
		h.bracket(buf, colorGray, r.Time.Format("15:04:05"))
	}
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
}

func (h *MavenHandler) bracket(buf *strings.Builder, color, text string) {
	if h.useColors && color != "" {
		buf.WriteString(color)
	}
	buf.WriteByte('[')
	buf.WriteString(text)
	buf.WriteByte(']')
	if h.useColors && color != "" {
		buf.WriteString(colorReset)
	}
}

// appendAttr writes " key=value", flattening groups to dotted keys.
func appendAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(buf, inner, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(a.Value))
}

// formatValue renders scores compactly and quotes text that would break
// key=value parsing.
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	}
	s := fmt.Sprint(v.Any())
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

func groupPrefix(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return strings.Join(groups, ".") + "."
}

func (h *MavenHandler) clone() *MavenHandler {
	c := *h
	c.groups = append([]string(nil), h.groups...)
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

// WithAttrs returns a new handler with the given attributes added
func (h *MavenHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	prefix := groupPrefix(h.groups)
	for _, a := range attrs {
		if prefix == "" {
			switch a.Key {
			case systemKey:
				c.system = a.Value.String()
				continue
			case runKey:
				c.runID = a.Value.String()
				continue
			}
		}
		if prefix != "" {
			a = slog.Group(strings.TrimSuffix(prefix, "."), a)
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

// WithGroup returns a new handler with the given group name added
func (h *MavenHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

// levelString returns a short, uppercase string for the log level
func levelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}
