package isofs

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"strings"
)

// Bound on continuation areas followed for a single record.
const maxContinuations = 16

// RockRidge is the subset of Rock Ridge information used to build the tree.
type rockRidge struct {
	name      string
	linkname  string
	mode      fs.FileMode
	hasMode   bool
	relocated bool
	hasChild  bool
	childLink int64
}

// ParseSUSP decodes the System Use Sharing Protocol entries in "su",
// following continuation areas.
func (f *FS) parseSUSP(su []byte, skip int) (rockRidge, error) {
	var rr rockRidge
	var name, link strings.Builder
	var linkDone bool
	if skip > len(su) {
		return rr, nil
	}
	area := su[skip:]
	for hops := 0; area != nil; hops++ {
		if hops > maxContinuations {
			return rr, fmt.Errorf("%w: too many continuation areas", ErrFormat)
		}
		next, err := f.parseArea(area, &rr, &name, &link, &linkDone)
		if err != nil {
			return rr, err
		}
		area = next
	}
	rr.name = name.String()
	rr.linkname = strings.TrimSuffix(link.String(), "\x00")
	return rr, nil
}

// ParseArea decodes one system use area and returns the continuation area,
// if any.
func (f *FS) parseArea(b []byte, rr *rockRidge, name, link *strings.Builder, linkDone *bool) ([]byte, error) {
	var next []byte
	for len(b) >= 4 {
		sig := string(b[0:2])
		n := int(b[2])
		if n < 4 || n > len(b) {
			break
		}
		e := b[:n]
		b = b[n:]
		switch sig {
		case "ST":
			return next, nil
		case "CE":
			if len(e) < 28 {
				return nil, fmt.Errorf("%w: short CE entry", ErrFormat)
			}
			lba := int64(binary.LittleEndian.Uint32(e[4:8]))
			off := int64(binary.LittleEndian.Uint32(e[12:16]))
			sz := int64(binary.LittleEndian.Uint32(e[20:24]))
			if sz > f.bs {
				return nil, fmt.Errorf("%w: oversized continuation area", ErrFormat)
			}
			next = make([]byte, sz)
			if _, err := f.r.ReadAt(next, lba*f.bs+off); err != nil {
				return nil, fmt.Errorf("%w: reading continuation area: %v", ErrFormat, err)
			}
		case "NM":
			if len(e) < 5 {
				continue
			}
			// Current and parent flags name nothing useful.
			if e[4]&0x06 != 0 {
				continue
			}
			name.Write(e[5:])
		case "SL":
			if len(e) < 5 || *linkDone {
				continue
			}
			more := parseSL(e[5:], link)
			if e[4]&0x01 == 0 && !more {
				*linkDone = true
			}
		case "PX":
			if len(e) < 8 {
				continue
			}
			m := binary.LittleEndian.Uint32(e[4:8])
			rr.mode = fs.FileMode(m & 0o777)
			rr.hasMode = true
		case "RE":
			rr.relocated = true
		case "CL":
			if len(e) < 8 {
				continue
			}
			rr.hasChild = true
			rr.childLink = int64(binary.LittleEndian.Uint32(e[4:8]))
		}
	}
	return next, nil
}

// ParseSL appends the components of a symbolic link entry to "link". It
// reports whether the last component continues in a following entry.
func parseSL(b []byte, link *strings.Builder) bool {
	// A component continued from a previous entry must not be preceded by a
	// separator. The builder's content tells us whether we're mid-component.
	cont := strings.HasSuffix(link.String(), "\x00")
	if cont {
		s := strings.TrimSuffix(link.String(), "\x00")
		link.Reset()
		link.WriteString(s)
	}
	var more bool
	for len(b) >= 2 {
		flags, n := b[0], int(b[1])
		if 2+n > len(b) {
			break
		}
		content := b[2 : 2+n]
		b = b[2+n:]

		sep := link.Len() > 0 && !cont && !strings.HasSuffix(link.String(), "/")
		cont = false
		switch {
		case flags&0x08 != 0:
			link.Reset()
			link.WriteByte('/')
			continue
		case flags&0x02 != 0:
			content = []byte(".")
		case flags&0x04 != 0:
			content = []byte("..")
		}
		if sep {
			link.WriteByte('/')
		}
		link.Write(content)
		more = flags&0x01 != 0
	}
	if more {
		// Marks a component continued in the next entry.
		link.WriteByte(0)
	}
	return more
}
