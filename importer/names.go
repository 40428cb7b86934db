package importer

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// SelectName picks the display name from localized names, using the first
// configured language present. A present language wins even if its name is
// empty.
func (im *Importer) selectName(op, path string, names map[string]string) (string, error) {
	for _, l := range im.languages {
		if n, ok := names[l]; ok {
			return n, nil
		}
	}
	return "", &softwareindex.Error{
		Op:      op,
		Kind:    softwareindex.ErrMissingName,
		Message: fmt.Sprintf("%s: no name in a known language (have: %s)", path, languages(names)),
	}
}

func languages(names map[string]string) string {
	if len(names) == 0 {
		return "none"
	}
	ls := slices.Sorted(maps.Keys(names))
	for i, l := range ls {
		if l == "" {
			ls[i] = `""`
		}
	}
	return strings.Join(ls, ", ")
}
