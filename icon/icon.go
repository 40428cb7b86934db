// Package icon picks representative icons and converts extracted bitmaps
// into the stored GIF form.
package icon

import (
	softwareindex "github.com/jbmorley/psion-software-index"
)

// MaxSize is the largest icon side length considered for display.
const MaxSize = 48

// Select returns the representative icon among the candidates, or nil if
// none qualifies.
//
// Only square candidates no larger than [MaxSize] qualify. Of those, the one
// with the greatest bit depth wins, then the greatest width; among exact
// ties the last candidate wins.
func Select(cands []softwareindex.Image) *softwareindex.Image {
	var best *softwareindex.Image
	for i := range cands {
		c := &cands[i]
		if c.Width != c.Height || c.Width > MaxSize {
			continue
		}
		if best == nil || !less(c, best) {
			best = c
		}
	}
	return best
}

// Less orders candidates by bit depth, then width.
func less(a, b *softwareindex.Image) bool {
	if a.BPP != b.BPP {
		return a.BPP < b.BPP
	}
	return a.Width < b.Width
}
