package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// Catalog file names.
const (
	SummaryFile  = "summary.json"
	SourcesFile  = "sources.json"
	ProgramsFile = "programs.json"
)

// Index is everything written by [Write].
type Index struct {
	Summary  softwareindex.Summary
	Sources  []softwareindex.SourceInfo
	Programs []*softwareindex.Program
}

// Write writes the catalog into "dir", creating it if needed.
//
// The icons directory is removed and recreated, so it only ever holds the
// icons referenced by this catalog. Nothing time-dependent is written, so
// writing the same Index twice produces identical files.
func Write(ctx context.Context, dir string, idx Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: unable to create output directory: %w", err)
	}

	programs := make([]programJSON, len(idx.Programs))
	for i, p := range idx.Programs {
		programs[i] = newProgramJSON(p)
	}
	files := []struct {
		name string
		v    any
	}{
		{SummaryFile, idx.Summary},
		{SourcesFile, nonNil(idx.Sources)},
		{ProgramsFile, programs},
	}
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		slog.InfoContext(ctx, "writing catalog file", "path", p)
		if err := writeJSON(p, f.v); err != nil {
			return fmt.Errorf("catalog: unable to write %q: %w", f.name, err)
		}
	}

	icons := filepath.Join(dir, IconsDir)
	if err := os.RemoveAll(icons); err != nil {
		return fmt.Errorf("catalog: unable to remove icons: %w", err)
	}
	if err := os.Mkdir(icons, 0o755); err != nil {
		return fmt.Errorf("catalog: unable to create icons directory: %w", err)
	}
	var n int
	for _, p := range idx.Programs {
		for _, r := range p.Releases {
			if r.Icon == nil {
				continue
			}
			if _, err := r.Icon.Write(icons); err != nil {
				return err
			}
			n++
		}
	}
	slog.DebugContext(ctx, "wrote icons", "path", icons, "count", n)
	return nil
}

// WriteJSON writes "v" to a temporary file next to "name" and renames it into
// place.
func writeJSON(name string, v any) error {
	f, err := os.CreateTemp(filepath.Dir(name), ".catalog.")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), name)
}
