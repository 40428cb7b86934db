package isofs

import (
	"io"
	"io/fs"
	"path"
	"time"
)

// Info implements [fs.FileInfo] using a backing [*inode].
type info struct{ *inode }

var _ fs.FileInfo = info{}

// Name implements [fs.FileInfo].
func (i info) Name() string { return path.Base(i.inode.name) }

// Size implements [fs.FileInfo].
func (i info) Size() int64 { return i.inode.size }

// Mode implements [fs.FileInfo].
func (i info) Mode() fs.FileMode { return i.inode.mode }

// ModTime implements [fs.FileInfo].
func (i info) ModTime() time.Time { return i.inode.modTime }

// IsDir implements [fs.FileInfo].
func (i info) IsDir() bool { return i.inode.mode.IsDir() }

// Sys implements [fs.FileInfo].
func (i info) Sys() any { return nil }

// Dirent implements [fs.DirEntry] using a backing [*inode].
type dirent struct{ *inode }

var _ fs.DirEntry = dirent{}

// Name implements [fs.DirEntry].
func (d dirent) Name() string { return path.Base(d.inode.name) }

// IsDir implements [fs.DirEntry].
func (d dirent) IsDir() bool { return d.inode.mode.IsDir() }

// Type implements [fs.DirEntry].
func (d dirent) Type() fs.FileMode { return d.inode.mode.Type() }

// Info implements [fs.DirEntry].
func (d dirent) Info() (fs.FileInfo, error) { return info{d.inode}, nil }

// File implements [fs.File] for regular files.
type file struct {
	*inode
	r io.Reader
}

var _ fs.File = (*file)(nil)

// Close implements [fs.File].
func (f *file) Close() error { return nil }

// Stat implements [fs.File].
func (f *file) Stat() (fs.FileInfo, error) { return info{f.inode}, nil }

// Read implements [fs.File].
func (f *file) Read(b []byte) (int, error) { return f.r.Read(b) }

// Dir implements [fs.ReadDirFile].
type dir struct {
	*inode
	es  []fs.DirEntry
	pos int
}

var _ fs.ReadDirFile = (*dir)(nil)

// Close implements [fs.File].
func (d *dir) Close() error { return nil }

// Stat implements [fs.File].
func (d *dir) Stat() (fs.FileInfo, error) { return info{d.inode}, nil }

// Read implements [fs.File].
func (d *dir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: `read`, Path: d.inode.name, Err: fs.ErrInvalid}
}

// ReadDir implements [fs.ReadDirFile].
func (d *dir) ReadDir(n int) ([]fs.DirEntry, error) {
	es := d.es[d.pos:]
	end := min(len(es), n)
	switch {
	case len(es) == 0 && n <= 0:
		return nil, nil
	case len(es) == 0 && n > 0:
		return nil, io.EOF
	case n <= 0:
		end = len(es)
	default:
	}
	d.pos += end
	return es[:end], nil
}
