package source

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/containers"
)

// Directory is a Source backed by a local file or directory tree.
type Directory struct {
	path        string
	name        string
	description string
	provider    MetadataProvider
}

// NewDirectory returns a Directory source rooted at "path". A nil provider
// means no curated summaries.
func NewDirectory(path, name, description string, provider MetadataProvider) (*Directory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, invalid("source.NewDirectory", "bad path", err)
	}
	if provider == nil {
		provider = NoMetadata
	}
	if name == "" {
		name = filepath.Base(abs)
	}
	return &Directory{
		path:        abs,
		name:        name,
		description: description,
		provider:    provider,
	}, nil
}

// Sync implements [Source].
//
// Local trees are never fetched; Sync only checks that the path exists.
func (d *Directory) Sync(ctx context.Context) error {
	if _, err := os.Stat(d.path); err != nil {
		return invalid("source.Directory.Sync", fmt.Sprintf("source %q unavailable", d.name), err)
	}
	return nil
}

// Info implements [Source].
func (d *Directory) Info(_ context.Context) (softwareindex.SourceInfo, error) {
	return softwareindex.SourceInfo{
		Path:        d.path,
		Name:        d.name,
		Description: d.description,
	}, nil
}

// Assets implements [importer.Source].
func (d *Directory) Assets(ctx context.Context, w *containers.Walker) iter.Seq2[containers.Entry, error] {
	return w.Walk(ctx, d.path, "")
}

// SummaryFor implements [importer.Source].
func (d *Directory) SummaryFor(path string) (string, bool) {
	return d.provider.SummaryFor(path)
}
