package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/containers"
	"github.com/jbmorley/psion-software-index/internal/log"
)

// Internet Archive locations.
const (
	archiveHost    = "archive.org"
	archiveBaseURL = "https://archive.org"
	// DefaultMirror serves copies of Internet Archive items, laid out as
	// "<mirror>/<item>/<file>".
	DefaultMirror = "https://psion.solarcene.community"
)

// ArchiveOrg is a Source backed by an Internet Archive item, or a single file
// within one.
//
// Supported URLs are item pages ("https://archive.org/details/<item>") and
// file downloads ("https://archive.org/download/<item>/<path>"). Downloads of
// files inside archives aren't supported.
type ArchiveOrg struct {
	url      string
	id       string
	itemDir  string
	relPath  string // slash-separated; empty for whole items
	path     string
	client   *http.Client
	limiter  *rate.Limiter
	base     string
	mirrors  []string
	provider MetadataProvider
}

// DefaultRate is the download request rate used when no Limiter is
// configured.
const DefaultRate = rate.Limit(2)

// ArchiveOrgOptions configures an ArchiveOrg source. The zero value is valid.
type ArchiveOrgOptions struct {
	Client *http.Client
	// Mirrors are tried in order when the Internet Archive fails. If nil,
	// DefaultMirror is used.
	Mirrors  []string
	Provider MetadataProvider
	// BaseURL replaces "https://archive.org" for downloads.
	BaseURL string
	// Limiter spaces out downloads. It may be shared between sources. If
	// nil, downloads are limited to DefaultRate.
	Limiter *rate.Limiter
}

// NewArchiveOrg returns a source for the item named by "rawURL", synced into
// a per-item directory under "assets".
func NewArchiveOrg(assets, rawURL string, opts *ArchiveOrgOptions) (*ArchiveOrg, error) {
	const op = "source.NewArchiveOrg"
	if opts == nil {
		opts = new(ArchiveOrgOptions)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalid(op, "bad URL", err)
	}
	unsupported := invalid(op, fmt.Sprintf("unsupported URL %q", rawURL), nil)
	if u.Hostname() != archiveHost {
		return nil, unsupported
	}
	comps := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	var id string
	switch {
	case len(comps) >= 3 && comps[0] == "download":
		for _, c := range comps[1 : len(comps)-1] {
			if containers.IsContainer(c) {
				return nil, unsupported
			}
		}
		id = comps[1]
	case len(comps) == 2 && comps[0] == "details":
		id = comps[1]
	default:
		return nil, unsupported
	}
	if id == "" || !fs.ValidPath(id) {
		return nil, unsupported
	}
	rel := path.Join(comps[2:]...)
	if rel != "" && !fs.ValidPath(rel) {
		return nil, unsupported
	}

	root, err := filepath.Abs(assets)
	if err != nil {
		return nil, invalid(op, "bad assets directory", err)
	}
	s := ArchiveOrg{
		url:      rawURL,
		id:       id,
		itemDir:  filepath.Join(root, id),
		relPath:  rel,
		client:   opts.Client,
		limiter:  opts.Limiter,
		base:     strings.TrimSuffix(opts.BaseURL, "/"),
		mirrors:  opts.Mirrors,
		provider: opts.Provider,
	}
	s.path = filepath.Join(s.itemDir, filepath.FromSlash(rel))
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(DefaultRate, 1)
	}
	if s.base == "" {
		s.base = archiveBaseURL
	}
	if s.mirrors == nil {
		s.mirrors = []string{DefaultMirror}
	}
	if s.provider == nil {
		s.provider = NoMetadata
	}
	return &s, nil
}

// ID reports the Internet Archive item identifier.
func (s *ArchiveOrg) ID() string { return s.id }

// Path reports where the source's assets are stored locally.
func (s *ArchiveOrg) Path() string { return s.path }

func (s *ArchiveOrg) metaPath() string  { return filepath.Join(s.itemDir, s.id+"_meta.xml") }
func (s *ArchiveOrg) filesPath() string { return filepath.Join(s.itemDir, s.id+"_files.xml") }

// Locations reports the download URLs for a file of the item, in preference
// order.
func (s *ArchiveOrg) locations(name string) []string {
	esc := escapePath(name)
	out := make([]string, 0, len(s.mirrors)+1)
	out = append(out, s.base+"/download/"+url.PathEscape(s.id)+"/"+esc)
	for _, m := range s.mirrors {
		out = append(out, strings.TrimSuffix(m, "/")+"/"+url.PathEscape(s.id)+"/"+esc)
	}
	return out
}

// Sync implements [Source].
//
// Files already present are not downloaded again. Downloaded files listed in
// the item's file manifest are checked against its size and SHA-1.
func (s *ArchiveOrg) Sync(ctx context.Context) error {
	ctx = log.With(ctx, "source", s.id)
	slog.InfoContext(ctx, "syncing source")
	if err := os.MkdirAll(s.itemDir, 0o755); err != nil {
		return fmt.Errorf("source: unable to create item directory: %w", err)
	}
	for _, p := range []string{s.metaPath(), s.filesPath()} {
		if err := s.fetch(ctx, filepath.Base(p), nil); err != nil {
			return err
		}
	}
	files, err := readFiles(s.filesPath())
	if err != nil {
		return err
	}
	if s.relPath != "" {
		return s.fetch(ctx, s.relPath, files.lookup(s.relPath))
	}
	for _, f := range files.Files {
		if f.Source != "original" || f.Name == filepath.Base(s.metaPath()) || f.Name == filepath.Base(s.filesPath()) {
			continue
		}
		if !fs.ValidPath(f.Name) {
			slog.WarnContext(ctx, "skipping file with unusable name", "name", f.Name)
			continue
		}
		if err := s.fetch(ctx, f.Name, &f); err != nil {
			return err
		}
	}
	return nil
}

// Fetch downloads the named file of the item if it's not already present.
func (s *ArchiveOrg) fetch(ctx context.Context, name string, want *archiveFile) error {
	dst := filepath.Join(s.itemDir, filepath.FromSlash(name))
	_, err := os.Stat(dst)
	switch {
	case errors.Is(err, nil):
		slog.DebugContext(ctx, "already present", "path", dst)
		return nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("source: %w", err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("source: waiting to download %q: %w", name, err)
	}
	return download(ctx, s.client, dst, want, s.locations(name)...)
}

// Info implements [Source].
//
// The title and description come from the item metadata fetched by Sync.
func (s *ArchiveOrg) Info(_ context.Context) (softwareindex.SourceInfo, error) {
	m, err := readMeta(s.metaPath())
	if err != nil {
		return softwareindex.SourceInfo{}, err
	}
	return softwareindex.SourceInfo{
		Path:        s.path,
		Name:        m.Title,
		Description: m.Description,
		URL:         s.url,
		HTMLURL:     archiveBaseURL + "/details/" + s.id,
	}, nil
}

// Assets implements [importer.Source].
//
// Reference names are relative to the item. The first item links to the
// configured URL and the second, if any, to a download within it.
func (s *ArchiveOrg) Assets(ctx context.Context, w *containers.Walker) iter.Seq2[containers.Entry, error] {
	return func(yield func(containers.Entry, error) bool) {
		for e, err := range w.Walk(ctx, s.path, s.itemDir) {
			if err == nil {
				e.Reference = s.resolve(e.Reference)
			}
			if !yield(e, err) {
				return
			}
		}
	}
}

func (s *ArchiveOrg) resolve(ref softwareindex.Reference) softwareindex.Reference {
	out := ref.Append()
	if len(out) > 0 {
		out[0].URL = s.url
	}
	if len(out) > 1 {
		out[1].URL = s.url + "/" + url.QueryEscape(out[1].Name)
	}
	return out
}

// SummaryFor implements [importer.Source].
func (s *ArchiveOrg) SummaryFor(path string) (string, bool) {
	return s.provider.SummaryFor(path)
}

type itemMeta struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
}

func readMeta(p string) (*itemMeta, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("source: unable to read item metadata: %w", err)
	}
	var m itemMeta
	if err := xml.Unmarshal(b, &m); err != nil {
		return nil, &softwareindex.Error{
			Op:      "source.readMeta",
			Kind:    softwareindex.ErrCorruptFormat,
			Message: p,
			Inner:   err,
		}
	}
	return &m, nil
}

type archiveFiles struct {
	Files []archiveFile `xml:"file"`
}

type archiveFile struct {
	Name   string `xml:"name,attr"`
	Source string `xml:"source,attr"`
	Size   int64  `xml:"size"`
	SHA1   string `xml:"sha1"`
}

func (l *archiveFiles) lookup(name string) *archiveFile {
	for i := range l.Files {
		if l.Files[i].Name == name {
			return &l.Files[i]
		}
	}
	return nil
}

func readFiles(p string) (*archiveFiles, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("source: unable to read item file list: %w", err)
	}
	var l archiveFiles
	if err := xml.Unmarshal(b, &l); err != nil {
		return nil, &softwareindex.Error{
			Op:      "source.readFiles",
			Kind:    softwareindex.ErrCorruptFormat,
			Message: p,
			Inner:   err,
		}
	}
	return &l, nil
}

// EscapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
