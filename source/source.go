// Package source implements the places artifacts are imported from.
package source

import (
	"context"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/importer"
)

// Source is a provenance root for artifacts.
type Source interface {
	importer.Source
	// Sync makes the source's assets available locally.
	Sync(context.Context) error
	// Info describes the source for the published catalog. It may need the
	// results of a previous Sync.
	Info(context.Context) (softwareindex.SourceInfo, error)
}

var (
	_ Source = (*Directory)(nil)
	_ Source = (*ArchiveOrg)(nil)
)

func invalid(op, msg string, err error) error {
	return &softwareindex.Error{
		Op:      op,
		Kind:    softwareindex.ErrInvalid,
		Message: msg,
		Inner:   err,
	}
}
