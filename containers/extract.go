package containers

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/jbmorley/psion-software-index/pkg/isofs"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// CleanName normalizes an archive member name into a path valid for
// [os.Root], reporting false for names that can't be represented.
func cleanName(n string) (string, bool) {
	n = strings.ReplaceAll(n, `\`, `/`)
	n = strings.TrimLeft(n, "/")
	if n == "" {
		return "", false
	}
	n = path.Clean(n)
	return n, fs.ValidPath(n) && n != "."
}

// ErrTooLarge is returned by a writer once the container's members exceed
// its byte budget.
var errTooLarge = errors.New("extracted size limit exceeded")

// Writer materializes archive members under a root, skipping members that
// collide with earlier ones.
type writer struct {
	ctx  context.Context
	root *os.Root
	// Limit is the total number of member bytes allowed; zero means none.
	limit   int64
	written int64
}

func newWriter(ctx context.Context, root *os.Root, limit int64) *writer {
	return &writer{ctx: ctx, root: root, limit: limit}
}

// Skip logs a member that's being dropped.
func (w *writer) skip(name string, err error) {
	slog.WarnContext(w.ctx, "skipping archive member", "member", name, "reason", err)
}

func (w *writer) dir(name string) {
	n, ok := cleanName(name)
	if !ok {
		return
	}
	if err := w.root.MkdirAll(n, dirPerm); err != nil {
		w.skip(n, err)
	}
}

// File copies r into the named file. Errors reading r are returned; errors
// writing are logged and the member is skipped.
func (w *writer) file(name string, r io.Reader) error {
	n, ok := cleanName(name)
	if !ok {
		w.skip(name, fs.ErrInvalid)
		_, err := io.Copy(io.Discard, r)
		return err
	}
	if d := path.Dir(n); d != "." {
		if err := w.root.MkdirAll(d, dirPerm); err != nil {
			w.skip(n, err)
			_, err := io.Copy(io.Discard, r)
			return err
		}
	}
	f, err := w.root.OpenFile(n, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		w.skip(n, err)
		_, err := io.Copy(io.Discard, r)
		return err
	}
	defer f.Close()
	var rerr error
	_, err = io.Copy(f, readerFunc(func(b []byte) (int, error) {
		n, err := r.Read(b)
		w.written += int64(n)
		if w.limit > 0 && w.written > w.limit {
			rerr = errTooLarge
			return n, rerr
		}
		if err != nil && !errors.Is(err, io.EOF) {
			rerr = err
		}
		return n, err
	}))
	switch {
	case rerr != nil:
		return rerr
	case err != nil:
		w.skip(n, err)
	}
	return nil
}

// Symlink recreates a symbolic link. The target is recorded as-is and never
// resolved.
func (w *writer) symlink(name, target string) {
	n, ok := cleanName(name)
	if !ok {
		w.skip(name, fs.ErrInvalid)
		return
	}
	if d := path.Dir(n); d != "." {
		if err := w.root.MkdirAll(d, dirPerm); err != nil {
			w.skip(n, err)
			return
		}
	}
	if err := w.root.Symlink(target, n); err != nil {
		w.skip(n, err)
	}
}

// Link recreates a hard link to an earlier member.
func (w *writer) link(name, target string) {
	n, ok := cleanName(name)
	t, tok := cleanName(target)
	if !ok || !tok {
		w.skip(name, fs.ErrInvalid)
		return
	}
	if d := path.Dir(n); d != "." {
		if err := w.root.MkdirAll(d, dirPerm); err != nil {
			w.skip(n, err)
			return
		}
	}
	if err := w.root.Link(t, n); err != nil {
		w.skip(n, err)
	}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(b []byte) (int, error) { return f(b) }

func extractZip(ctx context.Context, src string, w *writer) error {
	z, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer z.Close()
	for _, f := range z.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			w.dir(f.Name)
			continue
		case mode&fs.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			b, err := io.ReadAll(io.LimitReader(rc, 4096))
			rc.Close()
			if err != nil {
				return err
			}
			w.symlink(f.Name, string(b))
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = w.file(f.Name, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

// TarExtractor returns an extraction function for tarballs, optionally
// wrapped in a compression layer.
func tarExtractor(dec decompressor) func(context.Context, string, *writer) error {
	return func(ctx context.Context, src string, w *writer) error {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		var r io.Reader = f
		if dec != nil {
			z, c, err := dec(f)
			if err != nil {
				return err
			}
			defer c.Close()
			r = z
		}

		tr := tar.NewReader(r)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := tr.Next()
			switch {
			case errors.Is(err, nil):
			case errors.Is(err, io.EOF):
				return nil
			default:
				return err
			}
			switch h.Typeflag {
			case tar.TypeDir:
				w.dir(h.Name)
			case tar.TypeReg, tar.TypeGNUSparse:
				if err := w.file(h.Name, tr); err != nil {
					return fmt.Errorf("%s: %w", h.Name, err)
				}
			case tar.TypeSymlink:
				w.symlink(h.Name, h.Linkname)
			case tar.TypeLink:
				w.link(h.Name, h.Linkname)
			default:
				slog.DebugContext(ctx, "ignoring tar member", "member", h.Name, "type", string(h.Typeflag))
			}
		}
	}
}

func extractISO(ctx context.Context, src string, w *writer) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	sys, err := isofs.New(f)
	if err != nil {
		return err
	}
	return fs.WalkDir(sys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		switch t := d.Type(); {
		case t.IsDir():
			w.dir(p)
		case t&fs.ModeSymlink != 0:
			target, err := sys.ReadLink(p)
			if err != nil {
				return err
			}
			w.symlink(p, target)
		case t.IsRegular():
			rc, err := sys.Open(p)
			if err != nil {
				return err
			}
			defer rc.Close()
			return w.file(p, rc)
		}
		return nil
	})
}
