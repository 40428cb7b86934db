// Package containers walks directory trees, transparently descending into
// archive and disc image containers.
package containers

import (
	"context"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Format describes a recognized container format.
type format struct {
	// Name is used in logs and metrics.
	Name string
	// Extract unpacks the container at "src" through "w", whose root must
	// exist and be empty.
	Extract func(ctx context.Context, src string, w *writer) error
}

// Formats is the container table, keyed by lower-cased suffix. Longer
// suffixes are matched first.
var formats = []struct {
	Suffix string
	format
}{
	{".tar.gz", format{"tar+gzip", tarExtractor(gzipReader)}},
	{".tar.xz", format{"tar+xz", tarExtractor(xzReader)}},
	{".tar.zst", format{"tar+zstd", tarExtractor(zstdReader)}},
	{".tar.lz4", format{"tar+lz4", tarExtractor(lz4Reader)}},
	{".tgz", format{"tar+gzip", tarExtractor(gzipReader)}},
	{".tar", format{"tar", tarExtractor(nil)}},
	{".zip", format{"zip", extractZip}},
	{".iso", format{"iso", extractISO}},
}

// Lookup returns the container format for the named file, if any.
func lookup(name string) (format, bool) {
	n := strings.ToLower(name)
	for _, f := range formats {
		if strings.HasSuffix(n, f.Suffix) {
			return f.format, true
		}
	}
	return format{}, false
}

// IsContainer reports whether the named file is treated as a container.
func IsContainer(name string) bool {
	_, ok := lookup(name)
	return ok
}

// Decompressor constructors for compressed tarballs. The returned Closer
// releases decoder resources; it does not close the underlying Reader.
type decompressor func(io.Reader) (io.Reader, io.Closer, error)

func gzipReader(r io.Reader) (io.Reader, io.Closer, error) {
	z, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return z, z, nil
}

func xzReader(r io.Reader) (io.Reader, io.Closer, error) {
	z, err := xz.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return z, closeFunc(func() {}), nil
}

func zstdReader(r io.Reader) (io.Reader, io.Closer, error) {
	z, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return z, closeFunc(z.Close), nil
}

func lz4Reader(r io.Reader) (io.Reader, io.Closer, error) {
	return lz4.NewReader(r), closeFunc(func() {}), nil
}

// CloseFunc adapts a func() to an io.Closer.
type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
