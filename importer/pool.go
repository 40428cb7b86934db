package importer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/containers"
	"github.com/jbmorley/psion-software-index/internal/log"
)

// Job is the result slot for one artifact.
type job struct {
	r *softwareindex.Release
}

// ImportAll imports every artifact of the source, running up to the
// configured number of imports at once. Releases are returned in discovery
// order.
//
// Artifacts that fail with an error matching [softwareindex.ErrSkippable] are
// logged and left out. The first other error stops the run and is returned.
func (im *Importer) ImportAll(ctx context.Context, src Source) ([]*softwareindex.Release, error) {
	sem := semaphore.NewWeighted(im.inflight)
	eg, gctx := errgroup.WithContext(ctx)
	w := containers.Walker{
		TempDir: im.tempDir,
		// Draining the semaphore means no import is still reading from the
		// container about to be removed.
		BeforeCleanup: func() {
			if err := sem.Acquire(context.Background(), im.inflight); err == nil {
				sem.Release(im.inflight)
			}
		},
	}

	var jobs []*job
	var walkErr error
	for e, err := range src.Assets(gctx, &w) {
		if err != nil {
			walkErr = err
			break
		}
		if _, ok := im.kind(e.Path); !ok {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		j := new(job)
		jobs = append(jobs, j)
		eg.Go(func() error {
			defer sem.Release(1)
			r, err := im.importOne(gctx, src, e)
			if err != nil {
				return err
			}
			j.r = r
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}
	// The group's Context is always canceled by Wait, so only the caller's
	// Context says whether the walk was cut short.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*softwareindex.Release, 0, len(jobs))
	for _, j := range jobs {
		if j.r != nil {
			out = append(out, j.r)
		}
	}
	return out, nil
}

// ImportOne runs Import for a single artifact and decides whether a failure
// is fatal.
func (im *Importer) importOne(ctx context.Context, src Source, e containers.Entry) (_ *softwareindex.Release, err error) {
	ref := e.Reference.String()
	ctx = log.With(ctx, "artifact", ref)
	k, _ := im.kind(e.Path)
	ctx, span := tracer.Start(ctx, "Import",
		trace.WithAttributes(attribute.String("kind", k.String())))
	defer span.End()
	start := time.Now()
	result := "ok"
	defer func() {
		artifactsCounter.WithLabelValues(k.String(), result).Inc()
		artifactsDuration.WithLabelValues(k.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "import failed")
		}
	}()

	slog.DebugContext(ctx, "importing artifact", "path", e.Path)
	r, err := im.Import(ctx, src, e)
	switch {
	case errors.Is(err, nil):
		if r == nil {
			result = "ignored"
		}
		return r, nil
	case im.fatalName && errors.Is(err, softwareindex.ErrMissingName):
	case errors.Is(err, softwareindex.ErrUnsupportedFormat):
		result = "skipped"
		slog.InfoContext(ctx, "skipping unsupported artifact", "path", e.Path, "reason", err)
		return nil, nil
	case errors.Is(err, softwareindex.ErrSkippable):
		result = "skipped"
		slog.WarnContext(ctx, "skipping artifact", "path", e.Path, "reason", err)
		return nil, nil
	default:
	}
	result = "error"
	return nil, err
}
