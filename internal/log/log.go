// Package log carries logging attributes on a [context.Context].
//
// Components log through the default [slog.Logger] with the "Context"
// methods. Attributes added with [With] are attached to every record by a
// handler built with [NewHandler].
package log

import (
	"context"
	"log/slog"
	"slices"
)

type attrsKey struct{}

// With returns a Context carrying the key-value pairs in "args", given in the
// same form as [slog.Logger.Log] takes them. A key already carried by "ctx"
// takes the new value.
func With(ctx context.Context, args ...any) context.Context {
	all := append(Attrs(ctx), slog.Group("", args...).Value.Group()...)
	last := make(map[string]int, len(all))
	for i, a := range all {
		last[a.Key] = i
	}
	out := make([]slog.Attr, 0, len(last))
	for i, a := range all {
		if last[a.Key] == i {
			out = append(out, a)
		}
	}
	return context.WithValue(ctx, attrsKey{}, out)
}

// Attrs reports the attributes carried by "ctx".
func Attrs(ctx context.Context) []slog.Attr {
	as, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return slices.Clip(as)
}
