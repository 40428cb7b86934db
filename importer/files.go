package importer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jbmorley/psion-software-index/extractor"
)

const readmeName = "readme.txt"

// DiscoverTags runs recognition over every regular file under root and
// reports the mapped types and eras, sorted and deduplicated.
func (im *Importer) discoverTags(ctx context.Context, root string) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		r := im.ex.Recognize(ctx, p)
		for _, t := range []string{r.Era, r.Type} {
			if t == "" {
				continue
			}
			if m, ok := im.tags[t]; ok {
				t = m
			}
			seen[t] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	delete(seen, extractor.Unknown)
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags, nil
}

// FirstWithExt reports the first regular file under root, in lexical walk
// order, with the extension "ext" (compared case-insensitively). It returns
// the empty string if there's none.
func firstWithExt(root, ext string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.Type().IsRegular():
			return nil
		case strings.EqualFold(filepath.Ext(p), ext):
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}

// FindSibling reports the file in the same directory as "path" named "name",
// compared case-insensitively. It returns the empty string if there's none.
func findSibling(path, name string) (string, error) {
	dir := filepath.Dir(path)
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range ents {
		if e.Type().IsRegular() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// ReadmeFor reports the decoded contents of a readme next to "path", if any.
func readmeFor(path string) (string, error) {
	p, err := findSibling(path, readmeName)
	if err != nil || p == "" {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return extractor.Decode(b), nil
}
