package containers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/internal/log"
	"github.com/jbmorley/psion-software-index/pkg/tmp"
)

// Entry is a terminal artifact found by a walk.
type Entry struct {
	// Path is the artifact's location on disk. Paths inside containers are
	// only valid until the walk moves past the container.
	Path string
	// Reference locates the artifact relative to the walk root, one item per
	// container level.
	Reference softwareindex.Reference
}

// DefaultMaxDepth is the container nesting limit used when
// [Walker.MaxDepth] is zero.
const DefaultMaxDepth = 16

// Walker walks directory trees and the containers found in them.
//
// The zero value is ready to use.
type Walker struct {
	// TempDir is where scratch directories for extracted containers are
	// created. The default temporary directory is used if empty.
	TempDir string
	// MaxDepth is how many containers deep the walk descends. Containers
	// past the limit are logged and skipped. [DefaultMaxDepth] is used if
	// zero.
	MaxDepth int
	// MaxBytes bounds the bytes extracted from a single container. A
	// container that exceeds it is logged and skipped. Zero means no limit.
	MaxBytes int64
	// BeforeCleanup, if set, is called before a container's scratch directory
	// is removed. Consumers that hand yielded paths to other goroutines use it
	// to wait for that work to finish.
	BeforeCleanup func()
}

// Walk returns a sequence of all terminal artifacts under "root". Reference
// item names are relative to "relativeTo" at the top level, and to the
// extraction root inside containers.
//
// Containers that fail to extract are logged and skipped. An error yielded
// by the sequence is fatal; the sequence ends after it.
func (w *Walker) Walk(ctx context.Context, root, relativeTo string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		fi, err := os.Stat(abs)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		rel := relativeTo
		switch {
		case rel != "":
		case fi.IsDir():
			rel = abs
		default:
			rel = filepath.Dir(abs)
		}
		if rel, err = filepath.Abs(rel); err != nil {
			yield(Entry{}, err)
			return
		}
		w.walk(ctx, abs, fi.IsDir(), rel, nil, yield)
	}
}

// Walk reports false if the walk should stop.
func (w *Walker) walk(ctx context.Context, p string, isDir bool, rel string, ref softwareindex.Reference, yield func(Entry, error) bool) bool {
	if err := ctx.Err(); err != nil {
		return yield(Entry{}, err)
	}
	if isDir {
		ents, err := os.ReadDir(p)
		if err != nil {
			return yield(Entry{}, fmt.Errorf("containers: reading directory: %w", err))
		}
		// os.ReadDir sorts by name.
		for _, e := range ents {
			t := e.Type()
			if t&fs.ModeSymlink != 0 {
				slog.DebugContext(ctx, "not following symlink", "path", filepath.Join(p, e.Name()))
				continue
			}
			if !t.IsDir() && !t.IsRegular() {
				continue
			}
			if !w.walk(ctx, filepath.Join(p, e.Name()), t.IsDir(), rel, ref, yield) {
				return false
			}
		}
		return true
	}

	name, err := filepath.Rel(rel, p)
	if err != nil {
		return yield(Entry{}, err)
	}
	item := softwareindex.ReferenceItem{Name: filepath.ToSlash(name)}
	f, ok := lookup(p)
	if !ok {
		return yield(Entry{Path: p, Reference: ref.Append(item)}, nil)
	}
	return w.container(ctx, p, f, ref.Append(item), yield)
}

// Container extracts the container at "p" and walks its contents.
func (w *Walker) container(ctx context.Context, p string, f format, ref softwareindex.Reference, yield func(Entry, error) bool) bool {
	ctx = log.With(ctx, "container", ref.String())
	limit := w.MaxDepth
	if limit == 0 {
		limit = DefaultMaxDepth
	}
	// The reference holds one item per enclosing container plus this one.
	if len(ref) > limit {
		slog.WarnContext(ctx, "skipping container nested too deeply", "path", p, "limit", limit)
		return true
	}
	scratch, err := tmp.NewDir(w.TempDir, "container.")
	if err != nil {
		return yield(Entry{}, fmt.Errorf("containers: unable to create scratch directory: %w", err))
	}
	cont := true
	defer func() {
		if w.BeforeCleanup != nil {
			w.BeforeCleanup()
		}
		if err := scratch.Close(); err != nil && cont {
			yield(Entry{}, fmt.Errorf("containers: unable to remove scratch directory: %w", err))
		}
	}()

	if err := extract(ctx, p, f, scratch.Name(), w.MaxBytes); err != nil {
		if errors.Is(err, softwareindex.ErrInternal) {
			cont = yield(Entry{}, err)
			return cont
		}
		slog.WarnContext(ctx, "failed to extract container", "path", p, "format", f.Name, "reason", err)
		return true
	}
	cont = w.walk(ctx, scratch.Name(), true, scratch.Name(), ref, yield)
	return cont
}

// Extract unpacks the container into dir, reporting decode failures as
// [softwareindex.ErrCorruptFormat].
func extract(ctx context.Context, p string, f format, dir string, limit int64) (err error) {
	ctx, span := tracer.Start(ctx, "extract", trace.WithAttributes(
		attribute.String("format", f.Name),
	))
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "extraction failed")
		}
		attrs := metric.WithAttributes(
			attribute.String("format", f.Name),
			attribute.String("result", result),
		)
		extractCounter.Add(ctx, 1, attrs)
		extractDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}()

	slog.DebugContext(ctx, "extracting", "path", p, "format", f.Name)
	root, err := os.OpenRoot(dir)
	if err != nil {
		return &softwareindex.Error{
			Op:      "containers.extract",
			Kind:    softwareindex.ErrInternal,
			Message: "unable to open scratch directory",
			Inner:   err,
		}
	}
	defer root.Close()
	if err := f.Extract(ctx, p, newWriter(ctx, root, limit)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &softwareindex.Error{
				Op:    "containers.extract",
				Kind:  softwareindex.ErrInternal,
				Inner: ctxErr,
			}
		}
		return &softwareindex.Error{
			Op:      "containers.extract",
			Kind:    softwareindex.ErrCorruptFormat,
			Message: fmt.Sprintf("unable to extract %s container %q", f.Name, filepath.Base(p)),
			Inner:   err,
		}
	}
	return nil
}
