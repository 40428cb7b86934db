package catalog

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	softwareindex "github.com/jbmorley/psion-software-index"
)

func release(id, version, sha, name string) *softwareindex.Release {
	return &softwareindex.Release{
		Reference:  softwareindex.Reference{{Name: name + "-" + version + ".sis"}},
		Kind:       softwareindex.Installer,
		Identifier: id,
		SHA256:     sha,
		Name:       name,
		Version:    version,
	}
}

func TestGrouping(t *testing.T) {
	a := release("0x10000001", "1.0", "aa", "Alpha")
	b := release("0x10000001", "2.0", "bb", "Alpha")
	c := release("0x10000002", "1.0", "cc", "Beta")
	d := release("0x10000002", "1.0", "cc", "Beta")
	sum, ps := Aggregate([]*softwareindex.Release{a, b, c, d})

	wantSum := softwareindex.Summary{Releases: 4, Identifiers: 2, Versions: 3, Hashes: 3}
	if !cmp.Equal(sum, wantSum) {
		t.Error(cmp.Diff(wantSum, sum))
	}
	want := []*softwareindex.Program{
		{
			Identifier: "0x10000001",
			Releases:   []*softwareindex.Release{a, b},
			Versions: []softwareindex.Version{
				{Version: "1.0", Variants: []softwareindex.Variant{{SHA256: "aa", Releases: []*softwareindex.Release{a}}}},
				{Version: "2.0", Variants: []softwareindex.Variant{{SHA256: "bb", Releases: []*softwareindex.Release{b}}}},
			},
			Kinds: []softwareindex.ReleaseKind{softwareindex.Installer},
		},
		{
			Identifier: "0x10000002",
			Releases:   []*softwareindex.Release{c, d},
			Versions: []softwareindex.Version{
				{Version: "1.0", Variants: []softwareindex.Variant{{SHA256: "cc", Releases: []*softwareindex.Release{c, d}}}},
			},
			Kinds: []softwareindex.ReleaseKind{softwareindex.Installer},
		},
	}
	if !cmp.Equal(ps, want) {
		t.Error(cmp.Diff(want, ps))
	}
}

func TestVersionOrder(t *testing.T) {
	var rs []*softwareindex.Release
	for _, v := range []string{"2.0", "10.0", "1.5", softwareindex.UnknownVersion, "2.0"} {
		rs = append(rs, release("0x1", v, v, "P"))
	}
	_, ps := Aggregate(rs)
	var got []string
	for _, v := range ps[0].Versions {
		got = append(got, v.Version)
	}
	want := []string{"1.5", "2.0", "10.0", softwareindex.UnknownVersion}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
}

func TestProgramOrder(t *testing.T) {
	rs := []*softwareindex.Release{
		release("0x3", "1", "1", "cherry"),
		release("0x2", "1", "2", "Banana"),
		release("0x9", "1", "3", "apple"),
		release("0x1", "1", "4", "Apple"),
		release("0x4", "1", "5", "ÄRGER"),
		release("0x5", "1", "6", "ärger"),
	}
	_, ps := Aggregate(rs)
	var got []string
	for _, p := range ps {
		got = append(got, p.Identifier)
	}
	want := []string{"0x1", "0x9", "0x2", "0x3", "0x4", "0x5"}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
}

func TestTagsAndKinds(t *testing.T) {
	a := release("0x1", "1", "a", "P")
	a.Tags = []string{"opl", "epoc32"}
	b := release("0x1", "1", "b", "P")
	b.Kind = softwareindex.Standalone
	b.Tags = []string{"epoc32"}
	_, ps := Aggregate([]*softwareindex.Release{b, a})
	if got, want := ps[0].Tags, []string{"epoc32", "opl"}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
	if got, want := ps[0].Kinds, []softwareindex.ReleaseKind{softwareindex.Installer, softwareindex.Standalone}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
}

// Shape is the order-independent projection of an aggregation.
type shape struct {
	Summary  softwareindex.Summary
	Programs []programShape
}

type programShape struct {
	Identifier string
	Versions   []string
	Variants   [][]string
}

func shapeOf(sum softwareindex.Summary, ps []*softwareindex.Program) shape {
	s := shape{Summary: sum}
	for _, p := range ps {
		x := programShape{Identifier: p.Identifier}
		for _, v := range p.Versions {
			x.Versions = append(x.Versions, v.Version)
			var hs []string
			for _, vr := range v.Variants {
				hs = append(hs, vr.SHA256)
			}
			slices.Sort(hs)
			x.Variants = append(x.Variants, hs)
		}
		s.Programs = append(s.Programs, x)
	}
	return s
}

func TestDeterminism(t *testing.T) {
	var rs []*softwareindex.Release
	names := []string{"Vexed", "Jumpy", "Bombs", "Tiles", "Patience"}
	for i := range 40 {
		n := names[i%len(names)]
		id := "0x" + n
		rs = append(rs, release(id, []string{"1.0", "1.10", "1.9", "2"}[i%4], string(rune('a'+i%7)), n))
	}
	want := shapeOf(Aggregate(rs))
	rng := rand.New(rand.NewPCG(1, 2))
	for range 10 {
		shuffled := slices.Clone(rs)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := shapeOf(Aggregate(shuffled))
		if !cmp.Equal(got, want) {
			t.Error(cmp.Diff(want, got))
		}
	}
}
