package log

import (
	"context"
	"log/slog"
)

// NewHandler returns a handler that adds the attributes carried by the
// Context to each record before passing it to "next".
func NewHandler(next slog.Handler) slog.Handler {
	return ctxHandler{next: next}
}

type ctxHandler struct {
	next slog.Handler
}

var _ slog.Handler = ctxHandler{}

func (h ctxHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if as := Attrs(ctx); len(as) != 0 {
		r = r.Clone()
		r.AddAttrs(as...)
	}
	return h.next.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return ctxHandler{next: h.next.WithAttrs(as)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{next: h.next.WithGroup(name)}
}
