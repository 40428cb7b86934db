package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/jbmorley/psion-software-index/config"
	"github.com/jbmorley/psion-software-index/extractor"
	"github.com/jbmorley/psion-software-index/importer"
	"github.com/jbmorley/psion-software-index/internal/cache"
	"github.com/jbmorley/psion-software-index/source"
)

// Library is a loaded definition with its sources constructed.
type library struct {
	def     *config.Library
	sources []source.Source
	cache   *cache.DB
}

func newLibrary(ctx context.Context, def *config.Library) (*library, error) {
	l := library{def: def}
	var lim *rate.Limiter
	if def.DownloadRate > 0 {
		lim = rate.NewLimiter(rate.Limit(def.DownloadRate), 1)
	}
	for i, s := range def.Sources {
		src, err := newSource(ctx, def.AssetsDirectory, lim, &s)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		l.sources = append(l.sources, src)
	}
	slog.DebugContext(ctx, "loaded library", "path", def.Path, "sources", len(l.sources))
	return &l, nil
}

func newSource(ctx context.Context, assets string, lim *rate.Limiter, s *config.Source) (source.Source, error) {
	p := source.NoMetadata
	if s.Metadata != nil {
		var err error
		p, err = source.NewProvider(ctx, source.ProviderKind(s.Metadata.Kind), s.Metadata.Path)
		if err != nil {
			return nil, err
		}
	}
	if s.URL != "" {
		return source.NewArchiveOrg(assets, s.URL, &source.ArchiveOrgOptions{
			Provider: p,
			Limiter:  lim,
		})
	}
	return source.NewDirectory(s.Path, s.Name, s.Description, p)
}

// Importer constructs the extractor and importer. The cache is opened on
// first use.
func (l *library) importer(ctx context.Context) (*importer.Importer, error) {
	var c extractor.Cache
	if l.def.Cache != "" {
		if l.cache == nil {
			db, err := cache.Open(ctx, l.def.Cache)
			if err != nil {
				return nil, err
			}
			l.cache = db
		}
		c = l.cache
	}
	if d := l.def.TempDirectory; d != "" {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create temp directory: %w", err)
		}
	}
	tool, err := extractor.New(extractor.Config{
		Lua:     l.def.Extractor.Lua,
		OpoLua:  l.def.Extractor.OpoLua,
		Cache:   c,
		TempDir: l.def.TempDirectory,
	})
	if err != nil {
		return nil, err
	}
	opts := importer.DefaultOptions()
	if len(l.def.Languages) != 0 {
		opts.Languages = l.def.Languages
	}
	opts.Ignored = append(opts.Ignored, l.def.Ignored...)
	opts.Concurrency = l.def.Concurrency
	opts.FatalMissingName = l.def.FatalMissingName
	opts.TempDir = l.def.TempDirectory
	return importer.New(ctx, tool, opts), nil
}

func (l *library) Close() error {
	var errs []error
	if l.cache != nil {
		errs = append(errs, l.cache.Close())
	}
	return errors.Join(errs...)
}
