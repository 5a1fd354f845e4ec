package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Err wraps an error into the conventional attribute key.
func Err(err error) slog.Attr {
	return slog.Any("err", err)
}

type Options struct {
	// Level reports the minimum level to log.
	Level slog.Leveler

	// TimeFormat is the record timestamp format.
	TimeFormat string

	// NoColor disables ANSI colors, for non-terminal sinks.
	NoColor bool
}

var DefaultOptions = &Options{
	Level:      slog.LevelDebug,
	TimeFormat: time.DateTime,
}

// Handler is a compact colored console handler for slog.
type Handler struct {
	groups []string
	attrs  []slog.Attr

	opts Options

	mu  *sync.Mutex
	out io.Writer
}

// NewHandler creates a Handler writing to out. If opts is nil, uses
// [DefaultOptions].
func NewHandler(out io.Writer, opts *Options) *Handler {
	h := &Handler{out: out, mu: &sync.Mutex{}}
	if opts == nil {
		h.opts = *DefaultOptions
	} else {
		h.opts = *opts
	}
	return h
}

func (h *Handler) clone() *Handler {
	return &Handler{
		groups: h.groups,
		attrs:  h.attrs,
		opts:   h.opts,
		mu:     h.mu,
		out:    h.out,
	}
}

// Enabled implements slog.Handler.Enabled .
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.Handle .
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	bf := &bytes.Buffer{}

	if !r.Time.IsZero() {
		fmt.Fprint(bf, h.paint(color.Faint)(r.Time.Format(h.opts.TimeFormat)), " ")
	}

	if requestID, ok := RequestIDFromContext(ctx); ok {
		fmt.Fprint(bf, h.paint(color.FgMagenta)(requestID), " ")
	}

	fmt.Fprint(bf, h.levelTag(r.Level), " ")

	if len(h.groups) > 0 {
		fmt.Fprint(bf, h.paint(color.FgCyan)(strings.Join(h.groups, ".")), " ")
	}

	fmt.Fprint(bf, r.Message)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	for _, a := range attrs {
		key := h.paint(color.FgCyan)
		if strings.Contains(a.Key, "err") {
			key = h.paint(color.FgRed)
		}
		fmt.Fprint(bf, " ", key(a.Key+"="), a.Value.String())
	}

	fmt.Fprint(bf, "\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(bf.Bytes())
	return err
}

func (h *Handler) paint(attr color.Attribute) func(a ...interface{}) string {
	if h.opts.NoColor {
		return fmt.Sprint
	}
	return color.New(attr).SprintFunc()
}

func (h *Handler) levelTag(level slog.Level) string {
	var text string
	var c *color.Color
	switch {
	case level < slog.LevelInfo:
		text, c = "DEBUG", color.New(color.BgCyan, color.FgHiWhite)
	case level < slog.LevelWarn:
		text, c = "INFO ", color.New(color.BgGreen, color.FgHiWhite)
	case level < slog.LevelError:
		text, c = "WARN ", color.New(color.BgYellow, color.FgHiWhite)
	default:
		text, c = "ERROR", color.New(color.BgRed, color.FgHiWhite)
	}
	if h.opts.NoColor {
		return text
	}
	return c.Sprint(text)
}

// WithGroup implements slog.Handler.WithGroup .
func (h *Handler) WithGroup(name string) slog.Handler {
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

// WithAttrs implements slog.Handler.WithAttrs .
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	h2.attrs = append(h2.attrs, attrs...)
	return h2
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}
