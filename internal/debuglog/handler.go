package debuglog

import (
	"context"
	"log/slog"
)

// Handler is a slog.Handler that forwards every record to an inner handler
// and also appends it to a Log.
type Handler struct {
	inner slog.Handler
	log   *Log
	attrs []slog.Attr
	group string
}

// NewHandler tees records handled by inner into log.
func NewHandler(inner slog.Handler, log *Log) *Handler {
	return &Handler{inner: inner, log: log}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		attrs[key] = a.Value.Resolve().Any()
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.log.Add(Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	})

	return h.inner.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	prefixed = append(prefixed, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		prefixed = append(prefixed, a)
	}
	return &Handler{
		inner: h.inner.WithAttrs(attrs),
		log:   h.log,
		attrs: prefixed,
		group: h.group,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &Handler{
		inner: h.inner.WithGroup(name),
		log:   h.log,
		attrs: h.attrs,
		group: group,
	}
}
