// Package extractor adapts the OPL Lua tools that read installer packages
// and icon-resource files.
//
// Every operation runs the tool as a subprocess. The tool reports some
// expected failures only as text in its output; those markers are matched
// here and turned into typed errors. Any other failed invocation is a
// [*ToolError] wrapped in an error of kind [softwareindex.ErrToolFailure].
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// Script names, relative to the tool's source directory.
const (
	dumpsisScript   = "dumpsis.lua"
	dumpaifScript   = "dumpaif.lua"
	recognizeScript = "recognize.lua"
)

// LuaEnv names the environment variable consulted for the interpreter path
// when none is configured.
const LuaEnv = "LUA_PATH"

// Config configures a Tool.
type Config struct {
	// Lua is the interpreter path. If empty, $LUA_PATH is used, then "lua"
	// from $PATH.
	Lua string
	// OpoLua is the root of the tool checkout. Scripts are expected in its
	// "src" directory.
	OpoLua string
	// Cache, if set, memoizes metadata results by input content.
	Cache Cache
	// TempDir is where scratch directories are created. The default
	// temporary directory is used if empty.
	TempDir string
}

// Tool runs the external tool.
//
// A Tool is safe for concurrent use.
type Tool struct {
	lua       string
	dumpsis   string
	dumpaif   string
	recognize string
	cache     Cache
	tempDir   string
}

// New returns a Tool for the configuration, checking that the interpreter and
// scripts exist.
func New(cfg Config) (*Tool, error) {
	lua := cfg.Lua
	if lua == "" {
		lua = os.Getenv(LuaEnv)
	}
	if lua == "" {
		lua = "lua"
	}
	p, err := exec.LookPath(lua)
	if err != nil {
		return nil, &softwareindex.Error{
			Op:      "extractor.New",
			Kind:    softwareindex.ErrInvalid,
			Message: "lua interpreter not found",
			Inner:   err,
		}
	}
	src := filepath.Join(cfg.OpoLua, "src")
	t := Tool{
		lua:       p,
		dumpsis:   filepath.Join(src, dumpsisScript),
		dumpaif:   filepath.Join(src, dumpaifScript),
		recognize: filepath.Join(src, recognizeScript),
		cache:     cfg.Cache,
		tempDir:   cfg.TempDir,
	}
	for _, s := range []string{t.dumpsis, t.dumpaif, t.recognize} {
		if _, err := os.Stat(s); err != nil {
			return nil, &softwareindex.Error{
				Op:      "extractor.New",
				Kind:    softwareindex.ErrInvalid,
				Message: "missing tool script",
				Inner:   err,
			}
		}
	}
	return &t, nil
}

// PackageInfo is the metadata embedded in an installer package.
type PackageInfo struct {
	UID     uint32 `json:"uid"`
	Version string `json:"version"`
	// Name maps language tags (such as "en_GB") to the localized name.
	Name map[string]string `json:"name"`
}

// ResourceInfo is the metadata of an icon-resource file.
type ResourceInfo struct {
	UID3 uint32 `json:"uid3"`
	// Captions maps language tags to the localized caption.
	Captions map[string]string `json:"captions"`
}

// Recognition is the tool's guess at a file's type and platform era.
type Recognition struct {
	Type string `json:"type"`
	Era  string `json:"era,omitempty"`
}

// Unknown is reported for files the tool can't recognize.
const Unknown = "unknown"

// Dumpsis reads the metadata of the installer package at "path".
//
// Packages from unsupported format revisions report
// [softwareindex.ErrUnsupportedFormat].
func (t *Tool) Dumpsis(ctx context.Context, path string) (*PackageInfo, error) {
	var info PackageInfo
	if err := t.jsonCommand(ctx, "extractor.Dumpsis", t.dumpsis, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Dumpaif reads the metadata of the icon-resource file at "path".
//
// Files that aren't icon-resource files report
// [softwareindex.ErrNotIconResource].
func (t *Tool) Dumpaif(ctx context.Context, path string) (*ResourceInfo, error) {
	var info ResourceInfo
	if err := t.jsonCommand(ctx, "extractor.Dumpaif", t.dumpaif, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Recognize reports the type and era of the file at "path". Any failure is
// reported as the [Unknown] type.
func (t *Tool) Recognize(ctx context.Context, path string) Recognition {
	var r Recognition
	if err := t.jsonCommand(ctx, "extractor.Recognize", t.recognize, path, &r); err != nil {
		return Recognition{Type: Unknown}
	}
	return r
}

// ExtractPackage unpacks the installer package "src" into the existing
// directory "dst".
func (t *Tool) ExtractPackage(ctx context.Context, src, dst string) error {
	const op = "extractor.ExtractPackage"
	res, err := t.run(ctx, t.dumpsis, src, dst)
	if err != nil {
		return err
	}
	return res.err(op, src)
}

// JsonCommand runs a script in JSON mode against "path" and decodes its
// output into v, consulting the cache first.
func (t *Tool) jsonCommand(ctx context.Context, op, script, path string, v any) error {
	cmd := filepath.Base(script)
	var sum string
	if t.cache != nil {
		var err error
		if sum, err = fileSHA256(path); err != nil {
			return fileError(op, path, err)
		}
		res, err := t.cache.Lookup(ctx, cmd, sum)
		if err != nil {
			return fmt.Errorf("extractor: cache lookup: %w", err)
		}
		if res != nil {
			cacheHits.Add(ctx, 1)
			return res.decode(op, path, v)
		}
	}

	res, err := t.run(ctx, script, "--json", path)
	if err != nil {
		return err
	}
	if t.cache != nil && res.Outcome != Failed {
		if err := t.cache.Store(ctx, cmd, sum, res); err != nil {
			return fmt.Errorf("extractor: cache store: %w", err)
		}
	}
	return res.decode(op, path, v)
}

func (r *Result) decode(op, path string, v any) error {
	if err := r.err(op, path); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(Decode(r.Stdout)), v); err != nil {
		return &softwareindex.Error{
			Op:      op,
			Kind:    softwareindex.ErrCorruptFormat,
			Message: fmt.Sprintf("unable to decode tool output for %q", path),
			Inner:   err,
		}
	}
	return nil
}

func fileError(op, path string, err error) error {
	kind := softwareindex.ErrInternal
	if errors.Is(err, fs.ErrNotExist) {
		kind = softwareindex.ErrInvalid
	}
	return &softwareindex.Error{
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf("unable to read %q", path),
		Inner:   err,
	}
}
