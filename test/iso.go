package test

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"path"
	"slices"
	"strings"
	"testing"
)

const isoSector = 2048

// ISO returns an ISO 9660 image containing the members. Parent directories
// are created implicitly.
//
// With rockRidge set, entries carry Rock Ridge names, permissions and
// symbolic links; otherwise names are upper-cased identifiers with a version
// suffix and symbolic links are omitted. Every directory must fit in a single
// sector.
func ISO(t testing.TB, rockRidge bool, ms ...Member) []byte {
	t.Helper()
	type node struct {
		Member
		children []string
		lba      int
		size     int
	}
	nodes := map[string]*node{".": {Member: Member{Mode: fs.ModeDir}}}
	var add func(p string, m Member)
	add = func(p string, m Member) {
		if _, ok := nodes[p]; ok {
			return
		}
		d := path.Dir(p)
		if _, ok := nodes[d]; !ok {
			add(d, Member{Name: d, Mode: fs.ModeDir})
		}
		nodes[p] = &node{Member: m}
		nodes[d].children = append(nodes[d].children, p)
	}
	for _, m := range ms {
		if m.Mode&fs.ModeSymlink != 0 && !rockRidge {
			continue
		}
		add(path.Clean(m.Name), m)
	}

	// Directories first, breadth-first, then file data.
	next := 18
	var dirs []string
	queue := []string{"."}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		n := nodes[p]
		slices.Sort(n.children)
		n.lba, n.size = next, isoSector
		next++
		dirs = append(dirs, p)
		for _, c := range n.children {
			if nodes[c].Mode.IsDir() {
				queue = append(queue, c)
			}
		}
	}
	for _, p := range dirs {
		for _, c := range nodes[p].children {
			n := nodes[c]
			if n.Mode.IsDir() || n.Mode&fs.ModeSymlink != 0 {
				continue
			}
			n.lba, n.size = next, len(n.Data)
			next += max(1, (len(n.Data)+isoSector-1)/isoSector)
		}
	}

	img := make([]byte, next*isoSector)
	for _, p := range dirs {
		n := nodes[p]
		parent := nodes[path.Dir(p)]
		var b bytes.Buffer
		var su []byte
		if rockRidge && p == "." {
			su = []byte{'S', 'P', 7, 1, 0xBE, 0xEF, 0}
		}
		b.Write(isoRecord([]byte{0}, n.lba, n.size, true, su))
		b.Write(isoRecord([]byte{1}, parent.lba, parent.size, true, nil))
		for _, c := range n.children {
			cn := nodes[c]
			base := path.Base(c)
			id := strings.ToUpper(base)
			if !cn.Mode.IsDir() {
				id += ";1"
			}
			var su []byte
			if rockRidge {
				su = rockRidgeEntries(base, cn.Member)
			}
			b.Write(isoRecord([]byte(id), cn.lba, cn.size, cn.Mode.IsDir(), su))
		}
		if b.Len() > isoSector {
			t.Fatalf("directory %q does not fit in a sector", p)
		}
		copy(img[n.lba*isoSector:], b.Bytes())
	}
	for _, n := range nodes {
		if n.Mode.Type() == 0 && n.Name != "" {
			copy(img[n.lba*isoSector:], n.Data)
		}
	}

	pvd := img[16*isoSector : 17*isoSector]
	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	copy(pvd[8:72], bytes.Repeat([]byte{' '}, 64))
	copy(pvd[40:], "TEST")
	bothEndian32(pvd[80:88], uint32(next))
	bothEndian16(pvd[120:124], 1)
	bothEndian16(pvd[124:128], 1)
	bothEndian16(pvd[128:132], isoSector)
	root := nodes["."]
	copy(pvd[156:190], isoRecord([]byte{0}, root.lba, root.size, true, nil))
	term := img[17*isoSector : 18*isoSector]
	term[0] = 255
	copy(term[1:6], "CD001")
	term[6] = 1
	return img
}

func isoRecord(id []byte, lba, size int, dir bool, su []byte) []byte {
	n := 33 + len(id)
	if len(id)%2 == 0 {
		n++
	}
	n += len(su)
	if n%2 == 1 {
		n++
	}
	r := make([]byte, n)
	r[0] = byte(n)
	bothEndian32(r[2:10], uint32(lba))
	bothEndian32(r[10:18], uint32(size))
	copy(r[18:25], []byte{100, 1, 1, 0, 0, 0, 0})
	if dir {
		r[25] = 0x02
	}
	bothEndian16(r[28:32], 1)
	r[32] = byte(len(id))
	copy(r[33:], id)
	off := 33 + len(id)
	if len(id)%2 == 0 {
		off++
	}
	copy(r[off:], su)
	return r
}

func rockRidgeEntries(name string, m Member) []byte {
	var b bytes.Buffer
	mode := uint32(0o100644)
	switch {
	case m.Mode.IsDir():
		mode = 0o040755
	case m.Mode&fs.ModeSymlink != 0:
		mode = 0o120777
	}
	px := make([]byte, 36)
	copy(px, "PX")
	px[2], px[3] = 36, 1
	bothEndian32(px[4:12], mode)
	bothEndian32(px[12:20], 1)
	b.Write(px)

	b.WriteString("NM")
	b.WriteByte(byte(5 + len(name)))
	b.Write([]byte{1, 0})
	b.WriteString(name)

	if m.Mode&fs.ModeSymlink != 0 {
		var comp bytes.Buffer
		target := m.Linkname
		if strings.HasPrefix(target, "/") {
			comp.Write([]byte{0x08, 0})
			target = strings.TrimLeft(target, "/")
		}
		for _, c := range strings.Split(target, "/") {
			switch c {
			case "":
				continue
			case ".":
				comp.Write([]byte{0x02, 0})
			case "..":
				comp.Write([]byte{0x04, 0})
			default:
				comp.Write([]byte{0, byte(len(c))})
				comp.WriteString(c)
			}
		}
		b.WriteString("SL")
		b.WriteByte(byte(5 + comp.Len()))
		b.Write([]byte{1, 0})
		b.Write(comp.Bytes())
	}
	return b.Bytes()
}

func bothEndian16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b[0:2], v)
	binary.BigEndian.PutUint16(b[2:4], v)
}

func bothEndian32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b[0:4], v)
	binary.BigEndian.PutUint32(b[4:8], v)
}
