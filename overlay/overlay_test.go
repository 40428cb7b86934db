package overlay

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/test"
)

func pngOf(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func setup(t testing.TB) Layout {
	t.Helper()
	root := t.TempDir()
	index := filepath.Join(root, "index")
	test.WriteFile(t, index, "programs.json", []byte(`[{"uid":"0x00000001","name":"Vexed","tags":["epoc32"]},{"uid":"0x00000002","name":"Clock"}]`+"\n"))
	test.WriteFile(t, index, "sources.json", []byte(`[{"path":"a","name":"A","description":"","url":null,"html_url":null}]`+"\n"))
	test.WriteFile(t, index, "summary.json", []byte(`{"installerCount":2}`+"\n"))
	test.WriteFile(t, index, "icons/abc.gif", []byte("GIF89a"))

	ov := filepath.Join(root, "overlay")
	test.WriteFile(t, ov, "0x00000001/index.md", []byte("---\ntitle: Vexed\nauthors: [Someone]\n---\n\nPush the blocks.\n"))
	test.WriteFile(t, ov, "0x00000001/title.png", pngOf(t, 640, 240))
	test.WriteFile(t, ov, "0x00000001/game.png", pngOf(t, 480, 160))
	test.WriteFile(t, ov, "0x00000001/notes.txt", []byte("not published"))
	test.WriteFile(t, ov, ".git/config", []byte(""))
	test.WriteFile(t, ov, "0xdeadbeef/shot.png", pngOf(t, 1, 1))
	test.WriteFile(t, ov, "README.md", []byte("top-level files are ignored"))

	return Layout{
		Index:    index,
		Output:   filepath.Join(root, "site"),
		Overlays: []string{ov},
	}
}

func readJSON(t testing.TB, p string) any {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestApply(t *testing.T) {
	ctx, rec := test.Record(t)
	l := setup(t)
	if err := Apply(ctx, l); err != nil {
		t.Fatal(err)
	}

	want := []any{
		map[string]any{
			"uid":  "0x00000001",
			"name": "Vexed",
			"tags": []any{"epoc32"},
			"screenshots": []any{
				map[string]any{"width": 480.0, "height": 160.0, "path": "screenshots/0x00000001/game.png"},
				map[string]any{"width": 640.0, "height": 240.0, "path": "screenshots/0x00000001/title.png"},
			},
			"overlay": map[string]any{
				"title":   "Vexed",
				"authors": []any{"Someone"},
			},
		},
		map[string]any{"uid": "0x00000002", "name": "Clock"},
	}
	got := readJSON(t, filepath.Join(l.Output, DataDir, "programs.json"))
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}

	for _, p := range []string{
		"screenshots/0x00000001/game.png",
		"screenshots/0x00000001/title.png",
		"icons/abc.gif",
		"api/v1/icons/abc.gif",
		"api/v1/screenshots/0x00000001/title.png",
	} {
		if _, err := os.Stat(filepath.Join(l.Output, filepath.FromSlash(p))); err != nil {
			t.Error(err)
		}
	}
	for _, p := range []string{
		"screenshots/0x00000001/notes.txt",
		"screenshots/0xdeadbeef",
	} {
		if _, err := os.Stat(filepath.Join(l.Output, filepath.FromSlash(p))); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s: got: %v, want: not exist", p, err)
		}
	}

	for _, name := range []string{"programs", "sources", "summary"} {
		data, err := os.ReadFile(filepath.Join(l.Output, DataDir, name+".json"))
		if err != nil {
			t.Fatal(err)
		}
		api, err := os.ReadFile(filepath.Join(l.Output, "api", "v1", name, "index.json"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, api) {
			t.Errorf("%s: api copy differs", name)
		}
	}

	if got, want := len(rec.Find(slog.LevelWarn, "identifier", "0xdeadbeef")), 1; got != want {
		t.Errorf("got: %d warnings, want: %d", got, want)
	}
}

func TestApplyTwice(t *testing.T) {
	ctx := test.Logging(t)
	l := setup(t)
	if err := Apply(ctx, l); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(l.Overlays[0], "0x00000001", "game.png")); err != nil {
		t.Fatal(err)
	}
	if err := Apply(ctx, l); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		"screenshots/0x00000001/game.png",
		"api/v1/screenshots/0x00000001/game.png",
	} {
		if _, err := os.Stat(filepath.Join(l.Output, filepath.FromSlash(p))); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s: got: %v, want: not exist", p, err)
		}
	}
}

func TestApplyLayered(t *testing.T) {
	ctx := test.Logging(t)
	l := setup(t)
	extra := t.TempDir()
	test.WriteFile(t, extra, "0x00000001/index.md", []byte("---\ntitle: Vexed Deluxe\nyear: 1999\n---\n"))
	test.WriteFile(t, extra, "0x00000001/title.png", pngOf(t, 320, 120))
	l.Overlays = append(l.Overlays, extra)
	if err := Apply(ctx, l); err != nil {
		t.Fatal(err)
	}
	got := readJSON(t, filepath.Join(l.Output, DataDir, "programs.json")).([]any)[0].(map[string]any)
	wantOverlay := map[string]any{
		"title":   "Vexed Deluxe",
		"authors": []any{"Someone"},
		"year":    1999.0,
	}
	if !cmp.Equal(got["overlay"], wantOverlay) {
		t.Error(cmp.Diff(wantOverlay, got["overlay"]))
	}
	wantShots := []any{
		map[string]any{"width": 480.0, "height": 160.0, "path": "screenshots/0x00000001/game.png"},
		map[string]any{"width": 320.0, "height": 120.0, "path": "screenshots/0x00000001/title.png"},
	}
	if !cmp.Equal(got["screenshots"], wantShots) {
		t.Error(cmp.Diff(wantShots, got["screenshots"]))
	}
}

func TestApplyBadScreenshot(t *testing.T) {
	ctx := test.Logging(t)
	l := setup(t)
	test.WriteFile(t, l.Overlays[0], "0x00000001/broken.png", []byte("not a png"))
	err := Apply(ctx, l)
	if !errors.Is(err, softwareindex.ErrCorruptFormat) {
		t.Errorf("got: %v, want: %v", err, softwareindex.ErrCorruptFormat)
	}
}

func TestApplyNonStringKeys(t *testing.T) {
	ctx := test.Logging(t)
	l := setup(t)
	test.WriteFile(t, l.Overlays[0], "0x00000002/index.md", []byte("---\nscores:\n  1: good\n  2: [a, {3: c}]\n---\n"))
	if err := Apply(ctx, l); err != nil {
		t.Fatal(err)
	}
	ps, ok := readJSON(t, filepath.Join(l.Output, DataDir, "programs.json")).([]any)
	if !ok || len(ps) != 2 {
		t.Fatalf("unexpected programs: %v", ps)
	}
	got := ps[1].(map[string]any)["overlay"]
	want := map[string]any{
		"scores": map[string]any{
			"1": "good",
			"2": []any{"a", map[string]any{"3": "c"}},
		},
	}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
}

func TestApplyBadFrontMatter(t *testing.T) {
	ctx := test.Logging(t)
	l := setup(t)
	test.WriteFile(t, l.Overlays[0], "0x00000002/index.md", []byte("---\ntitle: [unclosed\n---\n"))
	err := Apply(ctx, l)
	if !errors.Is(err, softwareindex.ErrInvalid) {
		t.Errorf("got: %v, want: %v", err, softwareindex.ErrInvalid)
	}
}
