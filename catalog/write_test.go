package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/test"
)

func sampleIndex() Index {
	icon := &softwareindex.Image{Width: 32, Height: 32, BPP: 4, Data: []byte("GIF89a icon")}
	a := &softwareindex.Release{
		Reference: softwareindex.Reference{
			{Name: "psion-software", URL: "https://archive.org/download/psion-software/games.zip"},
			{Name: "games.zip", URL: "https://archive.org/download/psion-software/games.zip/games.zip"},
			{Name: "vexed.sis"},
		},
		Kind:       softwareindex.Installer,
		Identifier: "0x10004a3b",
		SHA256:     strings.Repeat("a", 64),
		Name:       "Vexed",
		Version:    "2.1",
		Icons:      []softwareindex.Image{*icon},
		Icon:       icon,
		Summary:    "Sliding block puzzle.",
		Tags:       []string{"epoc32"},
	}
	sum, ps := Aggregate([]*softwareindex.Release{a})
	return Index{
		Summary: sum,
		Sources: []softwareindex.SourceInfo{{
			Path:    "/assets/psion-software/games.zip",
			Name:    "Psion Software",
			URL:     "https://archive.org/download/psion-software/games.zip",
			HTMLURL: "https://archive.org/details/psion-software",
		}},
		Programs: ps,
	}
}

func TestWrite(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	idx := sampleIndex()
	if err := Write(ctx, dir, idx); err != nil {
		t.Fatal(err)
	}

	var got []map[string]any
	b, err := os.ReadFile(filepath.Join(dir, ProgramsFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	iconPath := "icons/" + idx.Programs[0].Icon().Filename()
	icon := map[string]any{"path": iconPath, "width": 32.0, "height": 32.0}
	want := []map[string]any{{
		"uid":     "0x10004a3b",
		"name":    "Vexed",
		"summary": "Sliding block puzzle.",
		"tags":    []any{"epoc32"},
		"kinds":   []any{"installer"},
		"icon":    icon,
		"versions": []any{map[string]any{
			"version": "2.1",
			"variants": []any{map[string]any{
				"identifier": strings.Repeat("a", 64),
				"items": []any{map[string]any{
					"reference": []any{
						map[string]any{"name": "psion-software", "url": "https://archive.org/download/psion-software/games.zip"},
						map[string]any{"name": "games.zip", "url": "https://archive.org/download/psion-software/games.zip/games.zip"},
						map[string]any{"name": "vexed.sis", "url": nil},
					},
					"kind":    "installer",
					"sha256":  strings.Repeat("a", 64),
					"uid":     "0x10004a3b",
					"name":    "Vexed",
					"version": "2.1",
					"tags":    []any{"epoc32"},
					"icon":    icon,
					"purl":    idx.Programs[0].Releases[0].PURL(),
				}},
			}},
		}},
	}}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}

	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(iconPath))); err != nil {
		t.Error(err)
	}
	b, err = os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"installerCount":1,"uidCount":1,"versionCount":1,"shaCount":1}`+"\n"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestWriteNullSummary(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	_, ps := Aggregate([]*softwareindex.Release{{
		Kind:       softwareindex.Standalone,
		Identifier: "x",
		SHA256:     "x",
		Name:       "Plain",
		Version:    softwareindex.UnknownVersion,
	}})
	if err := Write(ctx, dir, Index{Programs: ps}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, ProgramsFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range []string{`"summary":null`, `"tags":[]`, `"reference":null`} {
		if !bytes.Contains(b, []byte(frag)) {
			t.Errorf("missing %s in %s", frag, b)
		}
	}
	b, err = os.ReadFile(filepath.Join(dir, SourcesFile))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "[]\n"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestWriteIdempotent(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	stale := test.WriteFile(t, dir, "icons/stale.gif", []byte("old"))
	idx := sampleIndex()
	if err := Write(ctx, dir, idx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale icon not removed: %v", err)
	}
	first := snapshot(t, dir)
	if err := Write(ctx, dir, sampleIndex()); err != nil {
		t.Fatal(err)
	}
	second := snapshot(t, dir)
	if !cmp.Equal(first, second) {
		t.Error(cmp.Diff(first, second))
	}
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}
