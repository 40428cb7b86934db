package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/config"
	"github.com/jbmorley/psion-software-index/source"
	"github.com/jbmorley/psion-software-index/test"
)

func TestNewSource(t *testing.T) {
	ctx := test.Logging(t)
	assets := t.TempDir()
	tree := t.TempDir()

	src, err := newSource(ctx, assets, nil, &config.Source{URL: "https://archive.org/details/psion-software"})
	if err != nil {
		t.Fatal(err)
	}
	ao, ok := src.(*source.ArchiveOrg)
	if !ok {
		t.Fatalf("got: %T, want: %T", src, ao)
	}
	if got, want := ao.ID(), "psion-software"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	src, err = newSource(ctx, assets, nil, &config.Source{Path: tree, Name: "Local"})
	if err != nil {
		t.Fatal(err)
	}
	info, err := src.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := info.Name, "Local"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	_, err = newSource(ctx, assets, nil, &config.Source{Path: tree, Metadata: &config.Metadata{Kind: "bogus"}})
	if err == nil {
		t.Error("expected error for unknown metadata kind")
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []sourceCount{
		{Name: "Psion Software", Releases: 1234},
		{Name: "Local", Releases: 2},
	}, softwareindex.Summary{Releases: 1236, Identifiers: 900, Versions: 1000, Hashes: 1100})
	out := buf.String()
	for _, want := range []string{"PSION SOFTWARE", "1,234", "1,236", "900", "1,100"} {
		if !strings.Contains(strings.ToUpper(out), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTee(t *testing.T) {
	var a, b bytes.Buffer
	h := tee{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	l := slog.New(h).With("run", "x")
	l.Debug("only b")
	l.Info("both")
	if strings.Contains(a.String(), "only b") {
		t.Errorf("debug record reached info handler: %s", a.String())
	}
	for _, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), "msg=both run=x") {
			t.Errorf("missing record: %s", buf.String())
		}
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("tee should be enabled if any member is")
	}
}

func TestRunCommandsBadDefinition(t *testing.T) {
	ctx := test.Logging(t)
	p := test.WriteFile(t, t.TempDir(), "library.yaml", []byte("assets_directory: a\n"))
	err := runCommands(ctx, p, []subcmd{Sync})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSyncDirectory(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	test.WriteFile(t, dir, "tree/app.sis", []byte("x"))
	def := "assets_directory: _assets\nindex_directory: _index\noutput_directory: _site\nsources:\n  - path: tree\n"
	p := test.WriteFile(t, dir, "library.yaml", []byte(def))
	if err := runCommands(ctx, p, []subcmd{Sync}); err != nil {
		t.Fatal(err)
	}
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	def := "assets_directory: _assets\nindex_directory: _index\noutput_directory: _site\n"
	p := test.WriteFile(t, dir, "library.yaml", []byte(def))

	t.Run("OK", func(t *testing.T) {
		ctx := test.Logging(t)
		ok := func(context.Context, *library) error { return nil }
		if got, want := execute(ctx, p, []subcmd{ok, ok}), 0; got != want {
			t.Errorf("got: %d, want: %d", got, want)
		}
	})
	t.Run("Failed", func(t *testing.T) {
		ctx := test.Logging(t)
		fail := func(context.Context, *library) error { return errors.New("boom") }
		if got, want := execute(ctx, p, []subcmd{fail}), 2; got != want {
			t.Errorf("got: %d, want: %d", got, want)
		}
	})
	t.Run("Interrupted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(test.Logging(t))
		defer cancel()
		started := make(chan struct{})
		release := make(chan struct{})
		block := func(context.Context, *library) error {
			close(started)
			<-release
			return errors.New("finished late")
		}
		go func() {
			<-started
			cancel()
		}()
		got := execute(ctx, p, []subcmd{block})
		close(release)
		if want := 1; got != want {
			t.Errorf("got: %d, want: %d", got, want)
		}
	})
}
