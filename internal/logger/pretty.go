package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"
)

// prettyTimeFormat keeps millisecond resolution so load steps can be timed
// from the log alone.
const prettyTimeFormat = "15:04:05.000"

// handleKey is the attribute carrying a model handle id. PrettyHandler
// lifts it out of the attribute list and prints a short tag instead.
const handleKey = "id"

const handleTagLen = 8

type palette struct {
	reset, bold, time, attrs string
	debug, info, warn, error string
}

var (
	colorPalette = palette{
		reset: "\033[0m",
		bold:  "\033[1m",
		time:  "\033[90m",
		attrs: "\033[36m",
		debug: "\033[90m",
		info:  "\033[34m",
		warn:  "\033[33m",
		error: "\033[31m",
	}
	plainPalette palette
)

func (p palette) level(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return p.error
	case l >= slog.LevelWarn:
		return p.warn
	case l >= slog.LevelInfo:
		return p.info
	default:
		return p.debug
	}
}

// PrettyHandler is a slog.Handler for terminals:
//
//	15:04:05.000 INFO  [1f0c2a9e] model loaded inputs=2 outputs=1
//
// Colors are dropped when NO_COLOR is set. Source locations are never
// printed.
type PrettyHandler struct {
	level slog.Leveler
	w     io.Writer
	mu    *sync.Mutex
	pal   palette

	prefix string
	// pre holds the attributes added with WithAttrs, already rendered.
	pre    []byte
	handle string
}

// NewPrettyHandler creates a new PrettyHandler.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{
		level: slog.LevelInfo,
		w:     w,
		mu:    &sync.Mutex{},
		pal:   colorPalette,
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		h.pal = plainPalette
	}
	return h
}

// Plain returns a copy of h that writes no color escapes.
func (h *PrettyHandler) Plain() *PrettyHandler {
	c := h.clone()
	c.pal = plainPalette
	return c
}

func (h *PrettyHandler) clone() *PrettyHandler {
	c := *h
	c.pre = append([]byte(nil), h.pre...)
	return &c
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes a log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = append(buf, h.pal.time...)
	buf = r.Time.AppendFormat(buf, prettyTimeFormat)
	buf = append(buf, h.pal.reset...)
	buf = append(buf, ' ')

	buf = append(buf, h.pal.level(r.Level)...)
	buf = append(buf, h.pal.bold...)
	buf = fmt.Appendf(buf, "%-5s", r.Level.String())
	buf = append(buf, h.pal.reset...)
	buf = append(buf, ' ')

	handle := h.handle
	var rest []byte
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == handleKey && a.Value.Kind() == slog.KindString {
			handle = a.Value.String()
			return true
		}
		rest = appendAttr(rest, a, h.prefix)
		return true
	})
	if handle != "" {
		buf = append(buf, '[')
		buf = append(buf, shortHandle(handle)...)
		buf = append(buf, "] "...)
	}

	buf = append(buf, r.Message...)

	if len(h.pre) > 0 || len(rest) > 0 {
		buf = append(buf, h.pal.attrs...)
		buf = append(buf, h.pre...)
		buf = append(buf, rest...)
		buf = append(buf, h.pal.reset...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs returns a new handler with additional attributes.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if c.prefix == "" && a.Key == handleKey && a.Value.Kind() == slog.KindString {
			c.handle = a.Value.String()
			continue
		}
		c.pre = appendAttr(c.pre, a, c.prefix)
	}
	return c
}

// WithGroup returns a new handler with a group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func shortHandle(id string) string {
	if len(id) <= handleTagLen {
		return id
	}
	return id[:handleTagLen]
}

// appendAttr renders " key=value" with prefix prepended to the key.
func appendAttr(buf []byte, attr slog.Attr, prefix string) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return buf
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, a := range group {
			buf = appendAttr(buf, a, prefix)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, attr.Key...)
	buf = append(buf, '=')
	switch attr.Value.Kind() {
	case slog.KindString:
		buf = appendString(buf, attr.Value.String())
	case slog.KindTime:
		buf = attr.Value.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, attr.Value.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, attr.Value.Uint64(), 10)
	default:
		buf = appendString(buf, fmt.Sprint(attr.Value.Any()))
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	if s == "" || needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuoting(s string) bool {
	for _, c := range s {
		if c <= ' ' || c == '"' || c == '=' || c == 0x7f {
			return true
		}
	}
	return false
}
