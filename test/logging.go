package test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jbmorley/psion-software-index/internal/log"
)

// HandlerKey holds the per-test [slog.Handler] in a [context.Context].
type handlerKey struct{}

var installDefault = sync.OnceFunc(func() {
	slog.SetDefault(slog.New(dispatch{}))
})

// Dispatch is the default handler while tests run. It sends each record to
// the handler stored in the record's Context by [Logging], and drops records
// logged with any other Context.
type dispatch struct {
	ops []func(slog.Handler) slog.Handler
}

func (d dispatch) target(ctx context.Context) (slog.Handler, bool) {
	h, ok := ctx.Value(handlerKey{}).(slog.Handler)
	if !ok {
		return nil, false
	}
	for _, op := range d.ops {
		h = op(h)
	}
	return log.NewHandler(h), true
}

func (d dispatch) Enabled(ctx context.Context, l slog.Level) bool {
	h, ok := d.target(ctx)
	return ok && h.Enabled(ctx, l)
}

func (d dispatch) Handle(ctx context.Context, r slog.Record) error {
	h, ok := d.target(ctx)
	if !ok {
		return nil
	}
	return h.Handle(ctx, r)
}

func (d dispatch) WithAttrs(as []slog.Attr) slog.Handler {
	return d.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(as) })
}

func (d dispatch) WithGroup(name string) slog.Handler {
	return d.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (d dispatch) with(op func(slog.Handler) slog.Handler) dispatch {
	return dispatch{ops: append(slices.Clip(d.ops), op)}
}

// Logging returns a Context that routes the default [slog.Logger] to the
// test's output. Records are only written when logged with the returned
// Context or one derived from it.
//
// If "parent" is provided, the returned Context is derived from it.
func Logging(t testing.TB, parent ...context.Context) context.Context {
	installDefault()
	ctx := context.Background()
	if len(parent) > 0 {
		ctx = parent[0]
	}
	return context.WithValue(ctx, handlerKey{}, textHandler(t.Output(), time.Now()))
}

// Record is like [Logging], but additionally captures every record logged
// with the returned [context.Context] for later inspection.
func Record(t testing.TB, parent ...context.Context) (context.Context, *Recorder) {
	ctx := Logging(t, parent...)
	rec := &Recorder{
		next:  ctx.Value(handlerKey{}).(slog.Handler),
		store: new(recordStore),
	}
	return context.WithValue(ctx, handlerKey{}, rec), rec
}

// Recorder is a [slog.Handler] that keeps every record it handles.
//
// Recorders derived with WithAttrs or WithGroup share storage with their
// parent.
type Recorder struct {
	next  slog.Handler
	store *recordStore
	attrs []slog.Attr
}

type recordStore struct {
	mu   sync.Mutex
	recs []slog.Record
}

var _ slog.Handler = (*Recorder)(nil)

// Enabled implements [slog.Handler].
func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements [slog.Handler].
func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	c := rec.Clone()
	c.AddAttrs(r.attrs...)
	r.store.mu.Lock()
	r.store.recs = append(r.store.recs, c)
	r.store.mu.Unlock()
	return r.next.Handle(ctx, rec)
}

// WithAttrs implements [slog.Handler].
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Recorder{
		next:  r.next.WithAttrs(attrs),
		store: r.store,
		attrs: append(slices.Clip(r.attrs), attrs...),
	}
}

// WithGroup implements [slog.Handler].
//
// Recorded attributes are not qualified by the group name.
func (r *Recorder) WithGroup(name string) slog.Handler {
	return &Recorder{
		next:  r.next.WithGroup(name),
		store: r.store,
		attrs: r.attrs,
	}
}

// Records returns the records handled so far.
func (r *Recorder) Records() []slog.Record {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return slices.Clone(r.store.recs)
}

// Find returns the records at or above the level with an attribute of the
// given key and value.
func (r *Recorder) Find(l slog.Level, key, value string) []slog.Record {
	var out []slog.Record
	for _, rec := range r.Records() {
		if rec.Level < l {
			continue
		}
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key && a.Value.Resolve().String() == value {
				out = append(out, rec)
				return false
			}
			return true
		})
	}
	return out
}

// TextHandler writes records with the elapsed test time and the short source
// location.
func textHandler(w io.Writer, start time.Time) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(g []string, a slog.Attr) slog.Attr {
			if len(g) != 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, "+"+time.Since(start).Round(time.Microsecond).String())
			case slog.SourceKey:
				src, ok := a.Value.Any().(*slog.Source)
				if !ok {
					return a
				}
				return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			default:
			}
			return a
		},
	})
}
