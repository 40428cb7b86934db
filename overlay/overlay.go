// Package overlay publishes a catalog, merging in hand-curated screenshots and
// per-program metadata.
//
// An overlay directory holds one directory per program identifier:
//
//	overlay/
//	  0x10001234/
//	    index.md        # optional YAML front matter
//	    title.png
//	    game.png
//
// The output directory gets the site data in "_data", the copied icons and
// screenshots, and the same content laid out as a static API under "api/v1".
package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/catalog"
)

// Output layout.
const (
	DataDir        = "_data"
	ScreenshotsDir = "screenshots"
	APIDir         = "api/v1"
	IndexFile      = "index.md"
)

var yamlFrontMatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// Layout names the directories Apply reads and writes.
type Layout struct {
	// Index is the catalog directory written by [catalog.Write].
	Index string
	// Output is the site directory.
	Output string
	// Overlays are applied in order. Later front matter keys win.
	Overlays []string
}

// Screenshot is a published screenshot.
type Screenshot struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"path"`
}

type entry struct {
	screenshots []string
	meta        map[string]any
}

// Apply publishes the catalog in l.Index into l.Output.
//
// Previously published data, icons, screenshots and API files are removed
// first.
func Apply(ctx context.Context, l Layout) error {
	slog.InfoContext(ctx, "applying overlay", "index", l.Index, "output", l.Output)
	entries, err := collect(ctx, l.Overlays)
	if err != nil {
		return err
	}

	b, err := os.ReadFile(filepath.Join(l.Index, catalog.ProgramsFile))
	if err != nil {
		return fmt.Errorf("overlay: unable to read catalog: %w", err)
	}
	var programs []map[string]json.RawMessage
	if err := json.Unmarshal(b, &programs); err != nil {
		return &softwareindex.Error{
			Op:      "overlay.Apply",
			Kind:    softwareindex.ErrCorruptFormat,
			Message: "malformed programs catalog",
			Inner:   err,
		}
	}

	data := filepath.Join(l.Output, DataDir)
	shots := filepath.Join(l.Output, ScreenshotsDir)
	icons := filepath.Join(l.Output, catalog.IconsDir)
	api := filepath.Join(l.Output, filepath.FromSlash(APIDir))
	for _, d := range []string{data, shots, icons, api} {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("overlay: unable to clean output: %w", err)
		}
	}
	for _, d := range []string{data, shots} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("overlay: unable to create output: %w", err)
		}
	}

	used := make(map[string]struct{}, len(entries))
	for _, p := range programs {
		var id string
		if err := json.Unmarshal(p["uid"], &id); err != nil {
			return &softwareindex.Error{
				Op:      "overlay.Apply",
				Kind:    softwareindex.ErrCorruptFormat,
				Message: "program without identifier",
				Inner:   err,
			}
		}
		e, ok := entries[id]
		if !ok {
			continue
		}
		used[id] = struct{}{}
		ss, err := publishScreenshots(ctx, l.Output, id, e.screenshots)
		if err != nil {
			return err
		}
		if p["screenshots"], err = json.Marshal(ss); err != nil {
			return err
		}
		if len(e.meta) != 0 {
			if p["overlay"], err = json.Marshal(e.meta); err != nil {
				return fmt.Errorf("overlay: %s: unable to encode front matter: %w", id, err)
			}
		}
	}
	for _, id := range slices.Sorted(maps.Keys(entries)) {
		if _, ok := used[id]; !ok {
			slog.WarnContext(ctx, "overlay for unknown program", "identifier", id)
		}
	}

	if err := writeJSON(filepath.Join(data, catalog.ProgramsFile), programs); err != nil {
		return fmt.Errorf("overlay: unable to write programs: %w", err)
	}
	for _, name := range []string{catalog.SourcesFile, catalog.SummaryFile} {
		if err := copyFile(filepath.Join(data, name), filepath.Join(l.Index, name)); err != nil {
			return fmt.Errorf("overlay: unable to copy %s: %w", name, err)
		}
	}
	if err := os.CopyFS(icons, os.DirFS(filepath.Join(l.Index, catalog.IconsDir))); err != nil {
		return fmt.Errorf("overlay: unable to copy icons: %w", err)
	}

	if err := publishAPI(l.Output, data, icons, shots); err != nil {
		return fmt.Errorf("overlay: unable to write api: %w", err)
	}
	slog.InfoContext(ctx, "applied overlay", "programs", len(programs), "overlays", len(used))
	return nil
}

// Collect gathers the overlay entries from every directory in "dirs".
func collect(ctx context.Context, dirs []string) (map[string]*entry, error) {
	out := make(map[string]*entry)
	for _, dir := range dirs {
		ents, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("overlay: unable to read overlay: %w", err)
		}
		for _, d := range ents {
			id := d.Name()
			if strings.HasPrefix(id, ".") || !d.IsDir() {
				continue
			}
			e, ok := out[id]
			if !ok {
				e = &entry{meta: make(map[string]any)}
				out[id] = e
			}
			if err := e.load(ctx, filepath.Join(dir, id)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (e *entry) load(ctx context.Context, dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("overlay: unable to read overlay: %w", err)
	}
	for _, d := range ents {
		n := d.Name()
		switch {
		case strings.HasPrefix(n, "."), d.IsDir():
		case strings.EqualFold(path.Ext(n), ".png"):
			e.screenshots = append(e.screenshots, filepath.Join(dir, n))
		case n == IndexFile:
			meta, err := readFrontMatter(filepath.Join(dir, n))
			if err != nil {
				return err
			}
			maps.Copy(e.meta, meta)
		default:
			slog.DebugContext(ctx, "ignoring overlay file", "path", filepath.Join(dir, n))
		}
	}
	return nil
}

func readFrontMatter(p string) (map[string]any, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	defer f.Close()
	meta := make(map[string]any)
	if _, err := frontmatter.Parse(f, &meta, yamlFrontMatter); err != nil {
		return nil, &softwareindex.Error{
			Op:      "overlay.Apply",
			Kind:    softwareindex.ErrInvalid,
			Message: fmt.Sprintf("bad front matter in %q", p),
			Inner:   err,
		}
	}
	for k, v := range meta {
		meta[k] = stringKeys(v)
	}
	return meta, nil
}

// StringKeys rewrites the map[any]any values YAML produces for mappings with
// non-string keys, which JSON can't encode.
func stringKeys(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = stringKeys(e)
		}
		return v
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range v {
			v[i] = stringKeys(e)
		}
		return v
	default:
	}
	return v
}

// PublishScreenshots copies the screenshots for "id" into the output and
// reports their dimensions. The returned paths are relative to the output.
func publishScreenshots(ctx context.Context, out, id string, srcs []string) ([]Screenshot, error) {
	dir := filepath.Join(out, ScreenshotsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	// Later overlays may repeat a file name. The last one wins.
	byName := make(map[string]string, len(srcs))
	for _, src := range srcs {
		byName[filepath.Base(src)] = src
	}
	ss := make([]Screenshot, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		src := byName[name]
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(b))
		if err != nil {
			return nil, &softwareindex.Error{
				Op:      "overlay.Apply",
				Kind:    softwareindex.ErrCorruptFormat,
				Message: fmt.Sprintf("bad screenshot %q", src),
				Inner:   err,
			}
		}
		rel := path.Join(ScreenshotsDir, id, name)
		slog.DebugContext(ctx, "copying screenshot", "from", src, "to", rel)
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
		ss = append(ss, Screenshot{Width: cfg.Width, Height: cfg.Height, Path: rel})
	}
	return ss, nil
}

// PublishAPI mirrors the published data as "api/v1/<name>/index.json" along
// with the icons and screenshots.
func publishAPI(out, data, icons, shots string) error {
	api := filepath.Join(out, filepath.FromSlash(APIDir))
	if err := os.CopyFS(filepath.Join(api, catalog.IconsDir), os.DirFS(icons)); err != nil {
		return err
	}
	if err := os.CopyFS(filepath.Join(api, ScreenshotsDir), os.DirFS(shots)); err != nil {
		return err
	}
	for _, name := range []string{catalog.ProgramsFile, catalog.SourcesFile, catalog.SummaryFile} {
		dir := filepath.Join(api, strings.TrimSuffix(name, ".json"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := copyFile(filepath.Join(dir, "index.json"), filepath.Join(data, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(dst, src string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

func writeJSON(name string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(name, buf.Bytes(), 0o644)
}
