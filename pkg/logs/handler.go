package logs

import (
	"context"
	"log/slog"
	"strings"
)

// Handler copies every enabled record into a Store before passing it on.
type Handler struct {
	next   slog.Handler
	store  *Store
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// NewHandler wraps next. Records below level are dropped for both the
// store and next.
func NewHandler(next slog.Handler, store *Store, level slog.Leveler) *Handler {
	return &Handler{next: next, store: store, level: level}
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var data strings.Builder
	for _, a := range h.attrs {
		appendAttr(&data, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&data, h.prefix, a)
		return true
	})

	h.store.Append(Entry{
		Timestamp: r.Time,
		Level:     FromSlog(r.Level),
		Message:   r.Message,
		Data:      data.String(),
	})
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return &c
}

// appendAttr renders a as key=value, flattening groups.
func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			appendAttr(b, p, g)
		}
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}
