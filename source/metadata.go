package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jbmorley/psion-software-index/extractor"
)

// MetadataProvider supplies curated descriptions for artifacts.
type MetadataProvider interface {
	// SummaryFor reports the description for the artifact at "path", if any.
	SummaryFor(path string) (string, bool)
}

// ProviderKind names a MetadataProvider implementation.
type ProviderKind string

// Known provider kinds.
const (
	ProviderNone    ProviderKind = "none"
	ProviderLibrary ProviderKind = "library"
)

// NoMetadata is the MetadataProvider that knows nothing.
var NoMetadata MetadataProvider = noMetadata{}

type noMetadata struct{}

func (noMetadata) SummaryFor(string) (string, bool) { return "", false }

// NewProvider constructs the MetadataProvider of the named kind. The path is
// provider-specific.
func NewProvider(ctx context.Context, kind ProviderKind, path string) (MetadataProvider, error) {
	switch kind {
	case ProviderNone, "":
		return NoMetadata, nil
	case ProviderLibrary:
		return NewLibrary(ctx, path)
	default:
	}
	return nil, invalid("source.NewProvider", fmt.Sprintf("unknown metadata provider %q", kind), nil)
}

// LibraryIndexes are the listing pages of a software library mirror, relative
// to its root and without the ".htm" extension.
var libraryIndexes = []string{
	"library/epocgames",
	"library/epocgraphics",
	"library/epocmap",
	"library/epocmisc",
	"library/epocmoney",
	"library/epocprog",
	"library/epocutil",
	"library/epocvault",
	"library/geofox",
	"library/msgsuite",
	"library/pcba",
	"library/psiwin",
	"library/revogames",
	"library/s3comms",
	"library/s3games",
	"library/s3graphics",
	"library/s3mapping",
	"library/s3misc",
	"library/s3money",
	"library/s3prog",
	"library/s3units",
	"library/s3util",
	"library/s3vault",
	"library/s7games",
	"library/siena",
}

// Lines look like "vexed     01/02/99  Sliding block puzzle".
var listingLine = regexp.MustCompile(`^(\S+)\s+(\d{2}/\d{2}/\d{2})\s+(.+)$`)

// Library is a MetadataProvider reading the plain-text listings of a mirrored
// software library.
//
// Descriptions are keyed by directory; an artifact gets the description of
// the nearest enclosing listed directory.
type Library struct {
	descriptions map[string]string
}

// NewLibrary reads the listings under "root".
func NewLibrary(ctx context.Context, root string) (*Library, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, invalid("source.NewLibrary", "bad path", err)
	}
	l := Library{descriptions: make(map[string]string)}
	for _, idx := range libraryIndexes {
		dir := filepath.Join(root, filepath.FromSlash(idx))
		b, err := os.ReadFile(dir + ".htm")
		if err != nil {
			return nil, invalid("source.NewLibrary", "unable to read library listing", err)
		}
		for line := range strings.Lines(extractor.Decode(b)) {
			m := listingLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
			if m == nil {
				continue
			}
			p := filepath.Join(dir, m[1])
			l.descriptions[strings.ToLower(p)] = m[3]
			if _, err := os.Stat(p); err != nil {
				slog.WarnContext(ctx, "missing library entry", "path", p)
			}
		}
	}
	slog.DebugContext(ctx, "loaded library listings", "root", root, "count", len(l.descriptions))
	return &l, nil
}

// SummaryFor implements [MetadataProvider].
func (l *Library) SummaryFor(path string) (string, bool) {
	dir := strings.ToLower(filepath.Dir(path))
	for {
		if d, ok := l.descriptions[dir]; ok {
			return d, true
		}
		next := filepath.Dir(dir)
		if next == dir {
			return "", false
		}
		dir = next
	}
}
