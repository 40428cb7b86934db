// Package config loads library definitions.
//
// A library definition is a YAML file naming the sources to index and where
// synced assets, the catalog, and the published site live:
//
//	assets_directory: _assets
//	index_directory: _index
//	output_directory: _site
//	overlays: [overlay]
//	sources:
//	  - https://archive.org/details/psion-software
//	  - path: local/tree
//	    name: Local tree
//	    metadata: {kind: library, path: local/tree}
//
// Relative paths are resolved against the directory holding the definition.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// AssetsEnv names the environment variable that overrides the assets
// directory.
const AssetsEnv = "INDEXER_ASSETS_DIRECTORY"

// Library is a loaded library definition.
type Library struct {
	// Path is the absolute path of the definition file.
	Path string `yaml:"-"`

	// AssetsDirectory is where sources are synced to and read from.
	AssetsDirectory string `yaml:"assets_directory"`
	// IndexDirectory receives the catalog.
	IndexDirectory string `yaml:"index_directory"`
	// OutputDirectory receives the published site data.
	OutputDirectory string `yaml:"output_directory"`
	// Overlays are directories of per-program screenshots and front matter.
	Overlays []string `yaml:"overlays"`

	// Cache is an optional database path for memoized extractor results.
	Cache string `yaml:"cache,omitempty"`
	// TempDirectory is where scratch directories are created. The system
	// default is used if empty.
	TempDirectory string `yaml:"temp_directory,omitempty"`
	// Concurrency bounds concurrent imports. Zero means GOMAXPROCS.
	Concurrency int       `yaml:"concurrency,omitempty"`
	Extractor   Extractor `yaml:"extractor"`
	// DownloadRate is the number of downloads started per second, shared by
	// all sources. Zero means the source default.
	DownloadRate float64 `yaml:"download_rate,omitempty"`

	// Languages replaces the default name priority order.
	Languages []string `yaml:"languages,omitempty"`
	// Ignored adds to the default list of ignored file names.
	Ignored []string `yaml:"ignored,omitempty"`
	// FatalMissingName makes a nameless installer stop the run.
	FatalMissingName bool `yaml:"fatal_missing_name,omitempty"`

	Sources []Source `yaml:"sources"`
}

// Extractor configures the external metadata tool.
type Extractor struct {
	// Lua is the interpreter. A bare name is looked up in PATH.
	Lua string `yaml:"lua,omitempty"`
	// OpoLua is the checkout of the tool's scripts.
	OpoLua string `yaml:"opolua"`
}

// Source is one source entry. Exactly one of URL and Path is set.
//
// A bare string in the definition is taken as a URL.
type Source struct {
	URL         string    `yaml:"url,omitempty"`
	Path        string    `yaml:"path,omitempty"`
	Name        string    `yaml:"name,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Metadata    *Metadata `yaml:"metadata,omitempty"`
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (s *Source) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*s = Source{URL: n.Value}
		return nil
	}
	type plain Source
	return n.Decode((*plain)(s))
}

// Metadata selects a curated metadata provider for a source.
type Metadata struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path,omitempty"`
}

// Load reads the library definition at "path".
func Load(ctx context.Context, path string) (*Library, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, invalid("bad definition path", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, invalid("unable to open library definition", err)
	}
	defer f.Close()
	l, err := Parse(f)
	if err != nil {
		return nil, err
	}
	l.Path = abs
	l.resolve(filepath.Dir(abs))
	if v, ok := os.LookupEnv(AssetsEnv); ok && v != "" {
		slog.WarnContext(ctx, "overriding assets directory from environment", "env", AssetsEnv, "path", v)
		l.AssetsDirectory = v
	}
	return l, nil
}

// Parse decodes and validates a library definition. Paths are left as
// written.
func Parse(r io.Reader) (*Library, error) {
	var l Library
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	switch err := dec.Decode(&l); {
	case errors.Is(err, nil):
	case errors.Is(err, io.EOF):
		return nil, invalid("empty library definition", nil)
	default:
		return nil, invalid("malformed library definition", err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

func (l *Library) validate() error {
	var errs []error
	for _, f := range []struct {
		name, v string
	}{
		{"assets_directory", l.AssetsDirectory},
		{"index_directory", l.IndexDirectory},
		{"output_directory", l.OutputDirectory},
	} {
		if f.v == "" {
			errs = append(errs, fmt.Errorf("missing %q", f.name))
		}
	}
	if l.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("bad concurrency %d", l.Concurrency))
	}
	if l.DownloadRate < 0 {
		errs = append(errs, fmt.Errorf("bad download_rate %v", l.DownloadRate))
	}
	for i, s := range l.Sources {
		switch {
		case s.URL == "" && s.Path == "":
			errs = append(errs, fmt.Errorf("source %d: one of \"url\" or \"path\" is required", i))
		case s.URL != "" && s.Path != "":
			errs = append(errs, fmt.Errorf("source %d: only one of \"url\" or \"path\" may be set", i))
		}
		if s.Metadata != nil && s.Metadata.Kind == "" {
			errs = append(errs, fmt.Errorf("source %d: metadata needs a \"kind\"", i))
		}
	}
	if len(errs) != 0 {
		return invalid("invalid library definition", errors.Join(errs...))
	}
	return nil
}

// Resolve makes the definition's relative paths relative to "dir".
func (l *Library) resolve(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	abs(&l.AssetsDirectory)
	abs(&l.IndexDirectory)
	abs(&l.OutputDirectory)
	abs(&l.Cache)
	abs(&l.TempDirectory)
	abs(&l.Extractor.OpoLua)
	// Bare interpreter names are for PATH lookup.
	if strings.ContainsRune(l.Extractor.Lua, filepath.Separator) {
		abs(&l.Extractor.Lua)
	}
	for i := range l.Overlays {
		abs(&l.Overlays[i])
	}
	for i := range l.Sources {
		s := &l.Sources[i]
		abs(&s.Path)
		if s.Metadata != nil {
			abs(&s.Metadata.Path)
		}
	}
}

func invalid(msg string, err error) error {
	return &softwareindex.Error{
		Op:      "config.Load",
		Kind:    softwareindex.ErrInvalid,
		Message: msg,
		Inner:   err,
	}
}
