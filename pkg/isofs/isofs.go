// Package isofs implements the fs.FS interface over an ISO 9660 image.
//
// Names come from Rock Ridge entries when present, then Joliet, then the
// primary volume's identifiers with the version suffix removed. Rock Ridge
// symbolic links are exposed through [fs.ReadLinkFS] rather than followed
// when extracting. UDF-only images are not supported.
package isofs

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf16"
)

const (
	sectorSize       = 2048
	descriptorStart  = 16
	maxDescriptors   = 64
	maxDirectories   = 1 << 16
	maxSymlinkFollow = 40
)

// Volume descriptor types.
const (
	vdPrimary       = 1
	vdSupplementary = 2
	vdTerminator    = 255
)

// Directory record flags.
const (
	flagDirectory   = 0x02
	flagMultiExtent = 0x80
)

var (
	standardID = []byte("CD001")

	// ErrFormat is reported for images that can't be decoded.
	ErrFormat = errors.New("isofs: invalid image")
)

// FS implements a filesystem abstraction over an io.ReaderAt containing an
// ISO 9660 image.
type FS struct {
	r  io.ReaderAt
	bs int64
	// Size bounds the extents read from the image.
	size   int64
	lookup map[string]*inode
}

var (
	_ fs.FS         = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
	_ fs.ReadLinkFS = (*FS)(nil)
)

// Extent is a contiguous run of file data.
type extent struct {
	off, sz int64
}

// Inode is the in-memory record of a filesystem entry.
type inode struct {
	name     string // NB this is the full path
	mode     fs.FileMode
	size     int64
	modTime  time.Time
	extents  []extent
	linkname string
	children []string
}

// Volume holds what's needed from a volume descriptor.
type volume struct {
	root   []byte
	joliet bool
}

// New creates an FS from the image contained in the ReaderAt.
//
// The whole directory tree is read during New; the ReaderAt must remain valid
// for the entire life of the returned FS.
func New(r io.ReaderAt) (*FS, error) {
	fsCounter.Add(context.Background(), 1)
	s := FS{
		r:      r,
		bs:     sectorSize,
		lookup: make(map[string]*inode),
	}

	var primary, joliet *volume
	var blocks int64
	buf := make([]byte, sectorSize)
Descriptors:
	for i := int64(0); i < maxDescriptors; i++ {
		if _, err := r.ReadAt(buf, (descriptorStart+i)*sectorSize); err != nil {
			return nil, fmt.Errorf("%w: reading volume descriptor %d: %v", ErrFormat, i, err)
		}
		if !bytes.Equal(buf[1:6], standardID) {
			return nil, fmt.Errorf("%w: bad volume descriptor identifier", ErrFormat)
		}
		switch buf[0] {
		case vdPrimary:
			if primary != nil {
				continue
			}
			primary = &volume{root: bytes.Clone(buf[156 : 156+34])}
			blocks = int64(binary.LittleEndian.Uint32(buf[80:84]))
			if bs := int64(binary.LittleEndian.Uint16(buf[128:130])); bs != 0 {
				s.bs = bs
			}
		case vdSupplementary:
			esc := buf[88:120]
			if joliet == nil && isJolietEscape(esc) {
				joliet = &volume{root: bytes.Clone(buf[156 : 156+34]), joliet: true}
			}
		case vdTerminator:
			break Descriptors
		}
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: no primary volume descriptor", ErrFormat)
	}
	s.size = blocks * s.bs
	if n, ok := readerSize(r); ok {
		s.size = n
	}

	vol := primary
	rr, err := s.hasRockRidge(primary.root)
	if err != nil {
		return nil, err
	}
	if !rr && joliet != nil {
		vol = joliet
	}
	skip := -1
	if rr {
		skip = 0
	}
	if err := s.load(vol, skip); err != nil {
		return nil, err
	}
	return &s, nil
}

func isJolietEscape(b []byte) bool {
	return bytes.HasPrefix(b, []byte("%/@")) ||
		bytes.HasPrefix(b, []byte("%/C")) ||
		bytes.HasPrefix(b, []byte("%/E"))
}

// Record is a view over a single directory record.
type record []byte

func (d record) extent() int64  { return int64(binary.LittleEndian.Uint32(d[2:6])) }
func (d record) dataLen() int64 { return int64(binary.LittleEndian.Uint32(d[10:14])) }
func (d record) flags() byte    { return d[25] }
func (d record) ident() []byte  { return d[33 : 33+int(d[32])] }

// SystemUse returns the system use area of the record.
func (d record) systemUse() []byte {
	n := 33 + int(d[32])
	if d[32]%2 == 0 {
		n++
	}
	if n >= len(d) {
		return nil
	}
	return d[n:]
}

// ModTime decodes the 7-byte recording date.
func (d record) modTime() time.Time {
	b := d[18:25]
	off := time.Duration(int8(b[6])) * 15 * time.Minute
	loc := time.FixedZone("", int(off.Seconds()))
	return time.Date(1900+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), int(b[5]), 0, loc)
}

func (d record) valid() bool {
	return len(d) >= 34 && int(d[32])+33 <= len(d)
}

// HasRockRidge reports whether the "." entry of the root directory carries a
// SUSP "SP" entry.
func (f *FS) hasRockRidge(root record) (bool, error) {
	recs, err := f.readDir(root.extent(), root.dataLen())
	if err != nil {
		return false, err
	}
	if len(recs) == 0 {
		return false, nil
	}
	su := recs[0].systemUse()
	return len(su) >= 7 && string(su[0:2]) == "SP" && su[4] == 0xBE && su[5] == 0xEF, nil
}

// ReadDir returns every directory record in the directory at the extent.
func (f *FS) readDir(lba, size int64) ([]record, error) {
	if size < 0 || lba < 0 || lba*f.bs+size > f.size {
		return nil, fmt.Errorf("%w: implausible directory extent @%d+%d in %d byte image", ErrFormat, lba, size, f.size)
	}
	b := make([]byte, size)
	if _, err := f.r.ReadAt(b, lba*f.bs); err != nil && !(errors.Is(err, io.EOF) && len(b) == 0) {
		return nil, fmt.Errorf("%w: reading directory @%d: %v", ErrFormat, lba, err)
	}
	var out []record
	for off := int64(0); off < size; {
		n := int64(b[off])
		if n == 0 {
			// Records never straddle a sector: skip the padding.
			off = (off/f.bs + 1) * f.bs
			continue
		}
		if off+n > size {
			return nil, fmt.Errorf("%w: directory record overruns extent", ErrFormat)
		}
		rec := record(b[off : off+n])
		if !rec.valid() {
			return nil, fmt.Errorf("%w: malformed directory record", ErrFormat)
		}
		out = append(out, rec)
		off += n
	}
	return out, nil
}

// ReaderSize reports the size of "r", if it can be found.
func readerSize(r io.ReaderAt) (int64, bool) {
	switch r := r.(type) {
	case interface{ Size() int64 }:
		return r.Size(), true
	case interface{ Stat() (fs.FileInfo, error) }:
		fi, err := r.Stat()
		if err != nil {
			return 0, false
		}
		return fi.Size(), true
	default:
	}
	return 0, false
}

// Load walks the directory tree of the volume. A non-negative skip enables
// Rock Ridge processing.
func (f *FS) load(vol *volume, skip int) error {
	root := record(vol.root)
	f.lookup["."] = &inode{
		name:    ".",
		mode:    fs.ModeDir | 0o555,
		modTime: root.modTime(),
	}
	type pending struct {
		name    string
		lba, sz int64
	}
	queue := []pending{{".", root.extent(), root.dataLen()}}
	seen := make(map[int64]struct{})
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		if _, ok := seen[dir.lba]; ok {
			return fmt.Errorf("%w: directory loop at %q", ErrFormat, dir.name)
		}
		seen[dir.lba] = struct{}{}
		if len(seen) > maxDirectories {
			return fmt.Errorf("%w: too many directories", ErrFormat)
		}

		recs, err := f.readDir(dir.lba, dir.sz)
		if err != nil {
			return err
		}
		parent := f.lookup[dir.name]
		var last *inode
		for _, rec := range recs {
			id := rec.ident()
			if len(id) == 1 && (id[0] == 0 || id[0] == 1) {
				continue
			}
			var rr rockRidge
			if skip >= 0 {
				rr, err = f.parseSUSP(rec.systemUse(), skip)
				if err != nil {
					return err
				}
				if rr.relocated {
					continue
				}
			}

			n := rr.name
			switch {
			case n != "":
			case vol.joliet:
				n = jolietName(id)
			default:
				n = isoName(id)
			}
			if n == "" || n == "." || n == ".." || strings.Contains(n, "/") {
				continue
			}
			p := path.Join(dir.name, n)
			ext := extent{off: rec.extent() * f.bs, sz: rec.dataLen()}

			// Multi-extent files repeat their record for each extent.
			if last != nil && last.name == p && last.mode.IsRegular() {
				last.extents = append(last.extents, ext)
				last.size += ext.sz
				continue
			}

			ino := &inode{
				name:    p,
				modTime: rec.modTime(),
			}
			isDir := rec.flags()&flagDirectory != 0
			lba, sz := rec.extent(), rec.dataLen()
			if rr.hasChild {
				isDir = true
				lba = rr.childLink
				crecs, err := f.readDir(lba, f.bs)
				if err != nil {
					return err
				}
				if len(crecs) == 0 {
					return fmt.Errorf("%w: empty relocated directory", ErrFormat)
				}
				sz = crecs[0].dataLen()
			}
			switch {
			case rr.linkname != "":
				ino.mode = fs.ModeSymlink | 0o777
				ino.linkname = rr.linkname
			case isDir:
				ino.mode = fs.ModeDir | 0o555
			default:
				ino.mode = 0o444
				ino.extents = []extent{ext}
				ino.size = ext.sz
			}
			if rr.hasMode && rr.linkname == "" {
				ino.mode = ino.mode.Type() | rr.mode.Perm()
			}

			if _, dup := f.lookup[p]; dup {
				// Keep the first entry for a name.
				continue
			}
			f.lookup[p] = ino
			parent.children = append(parent.children, p)
			last = ino
			if isDir && rr.linkname == "" {
				queue = append(queue, pending{p, lba, sz})
			}
		}
		slices.Sort(parent.children)
	}
	return nil
}

// IsoName strips the version suffix and any trailing dot from a primary
// volume identifier.
func isoName(id []byte) string {
	n := string(id)
	if i := strings.IndexByte(n, ';'); i >= 0 {
		n = n[:i]
	}
	return strings.TrimSuffix(n, ".")
}

// JolietName decodes a UCS-2 big-endian identifier.
func jolietName(id []byte) string {
	u := make([]uint16, len(id)/2)
	for i := range u {
		u[i] = binary.BigEndian.Uint16(id[2*i:])
	}
	n := string(utf16.Decode(u))
	if i := strings.IndexByte(n, ';'); i >= 0 {
		n = n[:i]
	}
	return n
}

// GetInode returns the inode backing "name".
//
// The "op" parameter is used in error reporting.
func (f *FS) getInode(op, name string) (*inode, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	i, ok := f.lookup[name]
	if !ok {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return i, nil
}

// Resolve follows symlinks until reaching a non-link inode.
func (f *FS) resolve(op, name string) (*inode, error) {
	i, err := f.getInode(op, name)
	if err != nil {
		return nil, err
	}
	for n := 0; i.mode&fs.ModeSymlink != 0; n++ {
		if n == maxSymlinkFollow {
			return nil, &fs.PathError{Op: op, Path: name, Err: errors.New("too many levels of symbolic links")}
		}
		t := i.linkname
		if path.IsAbs(t) {
			t = strings.TrimPrefix(path.Clean(t), "/")
		} else {
			t = path.Join(path.Dir(i.name), t)
		}
		if t == "" || strings.HasPrefix(t, "..") {
			return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		i, err = f.getInode(op, t)
		if err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Open implements [fs.FS].
func (f *FS) Open(name string) (fs.File, error) {
	const op = `open`
	i, err := f.resolve(op, name)
	if err != nil {
		return nil, err
	}
	if i.mode.IsDir() {
		es, err := f.entries(i)
		if err != nil {
			return nil, err
		}
		return &dir{inode: i, es: es}, nil
	}
	rs := make([]io.Reader, len(i.extents))
	for n, e := range i.extents {
		rs[n] = io.NewSectionReader(f.r, e.off, e.sz)
	}
	return &file{inode: i, r: io.MultiReader(rs...)}, nil
}

func (f *FS) entries(i *inode) ([]fs.DirEntry, error) {
	es := make([]fs.DirEntry, len(i.children))
	for n, c := range i.children {
		es[n] = dirent{f.lookup[c]}
	}
	return es, nil
}

// ReadDir implements [fs.ReadDirFS].
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	const op = `readdir`
	i, err := f.resolve(op, name)
	if err != nil {
		return nil, err
	}
	if !i.mode.IsDir() {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return f.entries(i)
}

// Stat implements [fs.StatFS].
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	i, err := f.resolve(`stat`, name)
	if err != nil {
		return nil, err
	}
	return info{i}, nil
}

// Lstat implements [fs.ReadLinkFS].
func (f *FS) Lstat(name string) (fs.FileInfo, error) {
	i, err := f.getInode(`lstat`, name)
	if err != nil {
		return nil, err
	}
	return info{i}, nil
}

// ReadLink implements [fs.ReadLinkFS].
func (f *FS) ReadLink(name string) (string, error) {
	const op = `readlink`
	i, err := f.getInode(op, name)
	if err != nil {
		return "", err
	}
	if i.mode&fs.ModeSymlink == 0 {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return i.linkname, nil
}
