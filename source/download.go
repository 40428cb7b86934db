package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/pkg/mirror"
)

// Download fetches the first available of "urls" into "dst". If "want" is
// not nil, the download is checked against its size and hash before being
// moved into place.
func download(ctx context.Context, c *http.Client, dst string, want *archiveFile, urls ...string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("source: unable to create directory: %w", err)
	}
	slog.InfoContext(ctx, "downloading", "path", dst)
	start := time.Now()
	res, err := mirror.Get(ctx, c, urls...)
	if err != nil {
		return &softwareindex.Error{
			Op:      "source.download",
			Kind:    softwareindex.ErrInternal,
			Message: filepath.Base(dst),
			Inner:   err,
		}
	}
	defer res.Body.Close()

	f, err := os.CreateTemp(filepath.Dir(dst), ".download.")
	if err != nil {
		return fmt.Errorf("source: unable to create download file: %w", err)
	}
	defer os.Remove(f.Name())
	h := sha1.New()
	n, err := io.Copy(io.MultiWriter(f, h), res.Body)
	if err != nil {
		f.Close()
		return fmt.Errorf("source: download from %q failed: %w", res.Request.URL, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("source: unable to write download: %w", err)
	}
	if want != nil {
		if err := verify(want, n, hex.EncodeToString(h.Sum(nil))); err != nil {
			return err
		}
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return fmt.Errorf("source: unable to move download into place: %w", err)
	}
	slog.InfoContext(ctx, "downloaded",
		"url", res.Request.URL.String(),
		"path", dst,
		"size", humanize.Bytes(uint64(n)),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func verify(want *archiveFile, n int64, sum string) error {
	var msg string
	switch {
	case want.Size != 0 && want.Size != n:
		msg = fmt.Sprintf("%s: size mismatch: got %s, want %s",
			want.Name, humanize.Bytes(uint64(n)), humanize.Bytes(uint64(want.Size)))
	case want.SHA1 != "" && want.SHA1 != sum:
		msg = fmt.Sprintf("%s: sha1 mismatch: got %s, want %s", want.Name, sum, want.SHA1)
	default:
		return nil
	}
	return &softwareindex.Error{
		Op:      "source.verify",
		Kind:    softwareindex.ErrCorruptFormat,
		Message: msg,
	}
}
