// Package catalog builds and writes the published index.
//
// Everything here is a pure function of the Releases handed in: the same set
// of Releases produces the same catalog on every run.
package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// Aggregate groups Releases into Programs by identifier and computes the
// catalog Summary.
//
// Programs are ordered by name, compared with Unicode case folding, and then
// by identifier. Within a Program, Versions are in natural version order and
// Variants are in order of first appearance.
func Aggregate(rs []*softwareindex.Release) (softwareindex.Summary, []*softwareindex.Program) {
	type versionKey struct {
		id, version string
	}
	byID := make(map[string]*softwareindex.Program)
	versions := make(map[versionKey]struct{})
	hashes := make(map[string]struct{})
	var ps []*softwareindex.Program
	for _, r := range rs {
		versions[versionKey{r.Identifier, r.Version}] = struct{}{}
		hashes[r.SHA256] = struct{}{}
		p, ok := byID[r.Identifier]
		if !ok {
			p = &softwareindex.Program{Identifier: r.Identifier}
			byID[r.Identifier] = p
			ps = append(ps, p)
		}
		p.Releases = append(p.Releases, r)
	}
	sum := softwareindex.Summary{
		Releases:    len(rs),
		Identifiers: len(byID),
		Versions:    len(versions),
		Hashes:      len(hashes),
	}

	for _, p := range ps {
		build(p)
	}
	fold := cases.Fold()
	names := make(map[*softwareindex.Program]string, len(ps))
	for _, p := range ps {
		names[p] = fold.String(p.Name())
	}
	slices.SortFunc(ps, func(a, b *softwareindex.Program) int {
		if c := strings.Compare(names[a], names[b]); c != 0 {
			return c
		}
		return strings.Compare(a.Identifier, b.Identifier)
	})
	return sum, ps
}

// Build fills in the Versions, Tags, and Kinds of a Program from its
// Releases.
func build(p *softwareindex.Program) {
	idx := make(map[string]int)
	for _, r := range p.Releases {
		i, ok := idx[r.Version]
		if !ok {
			i = len(p.Versions)
			idx[r.Version] = i
			p.Versions = append(p.Versions, softwareindex.Version{Version: r.Version})
		}
		v := &p.Versions[i]
		j := slices.IndexFunc(v.Variants, func(vr softwareindex.Variant) bool { return vr.SHA256 == r.SHA256 })
		if j == -1 {
			v.Variants = append(v.Variants, softwareindex.Variant{SHA256: r.SHA256})
			j = len(v.Variants) - 1
		}
		v.Variants[j].Releases = append(v.Variants[j].Releases, r)

		p.Tags = append(p.Tags, r.Tags...)
		p.Kinds = append(p.Kinds, r.Kind)
	}
	slices.SortFunc(p.Versions, func(a, b softwareindex.Version) int {
		return softwareindex.CompareVersions(a.Version, b.Version)
	})
	slices.Sort(p.Tags)
	p.Tags = slices.Compact(p.Tags)
	slices.Sort(p.Kinds)
	p.Kinds = slices.Compact(p.Kinds)
}
