package test

import (
	"archive/tar"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Member describes one entry of a generated archive.
//
// Mode only needs the type bits: the zero value is a regular file,
// [fs.ModeDir] a directory and [fs.ModeSymlink] a link to Linkname.
type Member struct {
	Name     string
	Data     []byte
	Mode     fs.FileMode
	Linkname string
}

// File is a shorthand for a regular file Member.
func File(name, content string) Member {
	return Member{Name: name, Data: []byte(content)}
}

// Symlink is a shorthand for a symbolic link Member.
func Symlink(name, target string) Member {
	return Member{Name: name, Mode: fs.ModeSymlink, Linkname: target}
}

var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Zip returns a zip archive containing the members.
func Zip(t testing.TB, ms ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range ms {
		h := zip.FileHeader{
			Name:     m.Name,
			Method:   zip.Deflate,
			Modified: epoch,
		}
		body := m.Data
		switch {
		case m.Mode.IsDir():
			h.Name += "/"
			h.Method = zip.Store
			h.SetMode(fs.ModeDir | 0o755)
		case m.Mode&fs.ModeSymlink != 0:
			h.SetMode(fs.ModeSymlink | 0o777)
			body = []byte(m.Linkname)
		default:
			h.SetMode(0o644)
		}
		f, err := w.CreateHeader(&h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(body); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Tar returns a tar archive containing the members.
func Tar(t testing.TB, ms ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, m := range ms {
		h := tar.Header{
			Name:    m.Name,
			ModTime: epoch,
			Format:  tar.FormatPAX,
		}
		switch {
		case m.Mode.IsDir():
			h.Typeflag = tar.TypeDir
			h.Name += "/"
			h.Mode = 0o755
		case m.Mode&fs.ModeSymlink != 0:
			h.Typeflag = tar.TypeSymlink
			h.Linkname = m.Linkname
			h.Mode = 0o777
		default:
			h.Typeflag = tar.TypeReg
			h.Mode = 0o644
			h.Size = int64(len(m.Data))
		}
		if err := w.WriteHeader(&h); err != nil {
			t.Fatal(err)
		}
		if h.Typeflag == tar.TypeReg {
			if _, err := w.Write(m.Data); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Gzip compresses b.
func Gzip(t testing.TB, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// WriteFile writes b to name, relative to dir, creating parent directories
// as needed. It returns the full path.
func WriteFile(t testing.TB, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
