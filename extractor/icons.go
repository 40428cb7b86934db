package extractor

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/icon"
	"github.com/jbmorley/psion-software-index/pkg/tmp"
)

// Icons extracts the icon bitmaps from the icon-resource file at "path".
//
// The file is copied into a private scratch directory first, as the tool
// writes its output next to its input. Bitmaps are returned in index order,
// with their masks applied.
func (t *Tool) Icons(ctx context.Context, path string) ([]softwareindex.Image, error) {
	const op = "extractor.Icons"
	dir, err := tmp.NewDir(t.tempDir, "icons.")
	if err != nil {
		return nil, fileError(op, path, err)
	}
	defer dir.Close()

	base := filepath.Base(path)
	dst := filepath.Join(dir.Name(), base)
	if err := copyFile(dst, path); err != nil {
		return nil, fileError(op, path, err)
	}
	res, err := t.run(ctx, t.dumpaif, "-e", dst)
	if err != nil {
		return nil, err
	}
	if err := res.err(op, path); err != nil {
		return nil, err
	}

	ents, err := os.ReadDir(dir.Name())
	if err != nil {
		return nil, fileError(op, path, err)
	}
	pat := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_(\d+)_(\d+)x(\d+)_(\d+)bpp\.bmp$`)
	type found struct {
		idx, w, h, bpp int
		name           string
	}
	var bitmaps []found
	for _, e := range ents {
		m := pat.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		f := found{name: e.Name()}
		for i, p := range []*int{&f.idx, &f.w, &f.h, &f.bpp} {
			if *p, err = strconv.Atoi(m[i+1]); err != nil {
				return nil, fmt.Errorf("extractor: bad icon name %q: %w", e.Name(), err)
			}
		}
		bitmaps = append(bitmaps, f)
	}
	slices.SortFunc(bitmaps, func(a, b found) int { return cmp.Compare(a.idx, b.idx) })

	out := make([]softwareindex.Image, 0, len(bitmaps))
	for _, f := range bitmaps {
		mask := filepath.Join(dir.Name(), fmt.Sprintf("%s_%d_mask_%dx%d_2bpp.bmp", base, f.idx, f.w, f.h))
		if _, err := os.Stat(mask); err != nil {
			mask = ""
		}
		img, err := icon.Load(filepath.Join(dir.Name(), f.name), mask, f.bpp)
		if err != nil {
			return nil, &softwareindex.Error{
				Op:      op,
				Kind:    softwareindex.ErrCorruptFormat,
				Message: fmt.Sprintf("unable to load icon %d of %q", f.idx, base),
				Inner:   err,
			}
		}
		out = append(out, img)
	}
	return out, nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
