// Package importer turns artifacts found in sources into releases.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/containers"
	"github.com/jbmorley/psion-software-index/extractor"
	"github.com/jbmorley/psion-software-index/icon"
	"github.com/jbmorley/psion-software-index/pkg/tmp"
)

// Extractor is the metadata tool used by an Importer.
//
// [*extractor.Tool] implements this interface.
type Extractor interface {
	Dumpsis(ctx context.Context, path string) (*extractor.PackageInfo, error)
	Dumpaif(ctx context.Context, path string) (*extractor.ResourceInfo, error)
	ExtractPackage(ctx context.Context, src, dst string) error
	Icons(ctx context.Context, path string) ([]softwareindex.Image, error)
	Recognize(ctx context.Context, path string) extractor.Recognition
}

var _ Extractor = (*extractor.Tool)(nil)

// Source is where artifacts come from.
type Source interface {
	// Assets returns the artifacts of the source, walked with the provided
	// Walker.
	Assets(ctx context.Context, w *containers.Walker) iter.Seq2[containers.Entry, error]
	// SummaryFor reports a curated description for the artifact at "path".
	SummaryFor(path string) (string, bool)
}

// Artifact file extensions.
const (
	extInstaller  = ".sis"
	extStandalone = ".app"
	extResource   = ".aif"
)

// Importer builds Releases from artifacts.
//
// An Importer is safe for concurrent use.
type Importer struct {
	ex        Extractor
	languages []string
	ignored   map[string]struct{}
	reserved  []string
	tags      map[string]string
	inflight  int64
	fatalName bool
	tempDir   string
}

// New returns an Importer using the provided Extractor.
func New(ctx context.Context, ex Extractor, opts Options) *Importer {
	im := Importer{
		ex:        ex,
		languages: slices.Clone(opts.Languages),
		ignored:   make(map[string]struct{}, len(opts.Ignored)),
		reserved:  slices.Clone(opts.ReservedSegments),
		tags:      make(map[string]string, len(opts.TagMapping)),
		fatalName: opts.FatalMissingName,
		tempDir:   opts.TempDir,
	}
	for _, n := range opts.Ignored {
		im.ignored[n] = struct{}{}
	}
	for k, v := range opts.TagMapping {
		im.tags[k] = v
	}
	switch c := opts.Concurrency; {
	case c < 0:
		slog.WarnContext(ctx, "rectifying nonsense 'concurrency' argument", "value", c)
		fallthrough
	case c == 0:
		im.inflight = int64(runtime.GOMAXPROCS(0))
	default:
		im.inflight = int64(c)
	}
	return &im
}

// Kind classifies an artifact by its name, reporting false for files that
// aren't imported at all.
func (im *Importer) kind(path string) (softwareindex.ReleaseKind, bool) {
	base := filepath.Base(path)
	if _, ok := im.ignored[base]; ok {
		return 0, false
	}
	slashed := filepath.ToSlash(path)
	for _, seg := range im.reserved {
		if strings.Contains(slashed, seg) {
			return 0, false
		}
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case extInstaller:
		return softwareindex.Installer, true
	case extStandalone:
		return softwareindex.Standalone, true
	default:
	}
	return 0, false
}

// Import builds a Release for the artifact. A nil Release with a nil error
// means the artifact isn't imported.
//
// Errors matching [softwareindex.ErrSkippable] only concern this artifact;
// any other error should stop the run.
func (im *Importer) Import(ctx context.Context, src Source, e containers.Entry) (*softwareindex.Release, error) {
	k, ok := im.kind(e.Path)
	if !ok {
		return nil, nil
	}
	switch k {
	case softwareindex.Installer:
		return im.installer(ctx, src, e)
	case softwareindex.Standalone:
		return im.standalone(ctx, src, e)
	default:
		panic(fmt.Sprintf("programmer error: unknown kind %v", k))
	}
}

func (im *Importer) installer(ctx context.Context, src Source, e containers.Entry) (*softwareindex.Release, error) {
	const op = "importer.installer"
	info, err := im.ex.Dumpsis(ctx, e.Path)
	if err != nil {
		return nil, err
	}

	scratch, err := tmp.NewDir(im.tempDir, "package.")
	if err != nil {
		return nil, internalError(op, "unable to create scratch directory", err)
	}
	defer scratch.Close()
	if err := im.ex.ExtractPackage(ctx, e.Path, scratch.Name()); err != nil {
		return nil, err
	}
	tags, err := im.discoverTags(ctx, scratch.Name())
	if err != nil {
		return nil, internalError(op, "unable to list package contents", err)
	}
	var icons []softwareindex.Image
	aif, err := firstWithExt(scratch.Name(), extResource)
	if err != nil {
		return nil, internalError(op, "unable to list package contents", err)
	}
	if aif != "" {
		if icons, err = im.ex.Icons(ctx, aif); err != nil {
			return nil, err
		}
	}

	name, err := im.selectName(op, e.Path, info.Name)
	if err != nil {
		return nil, err
	}
	sum, err := fileSHA256(e.Path)
	if err != nil {
		return nil, internalError(op, "unable to hash artifact", err)
	}
	version := info.Version
	if version == "" {
		version = softwareindex.UnknownVersion
	}
	return im.release(src, e, softwareindex.Release{
		Kind:       softwareindex.Installer,
		Identifier: identifier(info.UID),
		SHA256:     sum,
		Name:       name,
		Version:    version,
		Icons:      icons,
		Tags:       tags,
	})
}

func (im *Importer) standalone(ctx context.Context, src Source, e containers.Entry) (*softwareindex.Release, error) {
	const op = "importer.standalone"
	tags, err := im.discoverTags(ctx, filepath.Dir(e.Path))
	if err != nil {
		return nil, internalError(op, "unable to list directory", err)
	}
	sum, err := fileSHA256(e.Path)
	if err != nil {
		return nil, internalError(op, "unable to hash artifact", err)
	}

	base := filepath.Base(e.Path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	r := softwareindex.Release{
		Kind:       softwareindex.Standalone,
		Identifier: sum,
		SHA256:     sum,
		Name:       stem,
		Version:    softwareindex.UnknownVersion,
		Tags:       tags,
	}

	aif, err := findSibling(e.Path, stem+extResource)
	if err != nil {
		return nil, internalError(op, "unable to list directory", err)
	}
	if aif != "" {
		info, err := im.ex.Dumpaif(ctx, aif)
		if err != nil {
			return nil, err
		}
		r.Identifier = identifier(info.UID3)
		if r.Name, err = im.selectName(op, aif, info.Captions); err != nil {
			return nil, err
		}
		if r.Icons, err = im.ex.Icons(ctx, aif); err != nil {
			return nil, err
		}
		return im.release(src, e, r)
	}

	// Some programs carry their resources in the executable. The identifier
	// stays the content hash in that case.
	name, icons, err := im.embeddedResource(ctx, op, e.Path)
	switch {
	case errors.Is(err, nil):
		r.Name, r.Icons = name, icons
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, softwareindex.ErrNotIconResource):
	default:
		slog.WarnContext(ctx, "failed to parse program as icon resource", "path", e.Path, "reason", err)
	}
	return im.release(src, e, r)
}

func (im *Importer) embeddedResource(ctx context.Context, op, path string) (string, []softwareindex.Image, error) {
	info, err := im.ex.Dumpaif(ctx, path)
	if err != nil {
		return "", nil, err
	}
	icons, err := im.ex.Icons(ctx, path)
	if err != nil {
		return "", nil, err
	}
	name, err := im.selectName(op, path, info.Captions)
	if err != nil {
		return "", nil, err
	}
	return name, icons, nil
}

// Release fills in the parts of a Release common to all kinds.
func (im *Importer) release(src Source, e containers.Entry, r softwareindex.Release) (*softwareindex.Release, error) {
	r.Reference = e.Reference
	r.Icon = icon.Select(r.Icons)
	if s, ok := src.SummaryFor(e.Path); ok {
		r.Summary = s
	}
	readme, err := readmeFor(e.Path)
	if err != nil {
		return nil, internalError("importer.release", "unable to read readme", err)
	}
	r.Readme = readme
	return &r, nil
}

func identifier(uid uint32) string {
	return fmt.Sprintf("0x%08x", uid)
}

func internalError(op, msg string, err error) error {
	return &softwareindex.Error{
		Op:      op,
		Kind:    softwareindex.ErrInternal,
		Message: msg,
		Inner:   err,
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
