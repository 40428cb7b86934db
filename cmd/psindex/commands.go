package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/catalog"
	"github.com/jbmorley/psion-software-index/internal/log"
	"github.com/jbmorley/psion-software-index/overlay"
)

// Sync fetches every source's assets.
func Sync(ctx context.Context, l *library) error {
	slog.InfoContext(ctx, "syncing sources", "count", len(l.sources))
	for i, src := range l.sources {
		ctx := log.With(ctx, "source", i)
		if err := src.Sync(ctx); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}
	return nil
}

type sourceCount struct {
	Name     string
	Releases int
}

// Index imports every source and writes the catalog.
func Index(ctx context.Context, l *library) error {
	start := time.Now()
	im, err := l.importer(ctx)
	if err != nil {
		return err
	}
	var (
		releases []*softwareindex.Release
		infos    []softwareindex.SourceInfo
		counts   []sourceCount
	)
	for i, src := range l.sources {
		ctx := log.With(ctx, "source", i)
		info, err := src.Info(ctx)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		slog.InfoContext(ctx, "indexing source", "name", info.Name, "path", info.Path)
		rs, err := im.ImportAll(ctx, src)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		infos = append(infos, info)
		counts = append(counts, sourceCount{Name: info.Name, Releases: len(rs)})
		releases = append(releases, rs...)
	}

	summary, programs := catalog.Aggregate(releases)
	idx := catalog.Index{
		Summary:  summary,
		Sources:  infos,
		Programs: programs,
	}
	if err := catalog.Write(ctx, l.def.IndexDirectory, idx); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	slog.InfoContext(ctx, "wrote catalog",
		"path", l.def.IndexDirectory,
		"programs", len(programs),
		"elapsed", time.Since(start).Round(time.Millisecond))
	printSummary(os.Stdout, counts, summary)
	return nil
}

// Overlay publishes the catalog into the output directory.
func Overlay(ctx context.Context, l *library) error {
	return overlay.Apply(ctx, overlay.Layout{
		Index:    l.def.IndexDirectory,
		Output:   l.def.OutputDirectory,
		Overlays: l.def.Overlays,
	})
}

func printSummary(w io.Writer, counts []sourceCount, s softwareindex.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Source", "Releases"})
	for _, c := range counts {
		table.Append([]string{c.Name, humanize.Comma(int64(c.Releases))})
	}
	table.SetFooter([]string{"Total", humanize.Comma(int64(s.Releases))})
	table.Render()

	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Identifiers", "Versions", "Hashes"})
	table.Append([]string{
		humanize.Comma(int64(s.Identifiers)),
		humanize.Comma(int64(s.Versions)),
		humanize.Comma(int64(s.Hashes)),
	})
	table.Render()
}
