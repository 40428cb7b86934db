package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	softwareindex "github.com/jbmorley/psion-software-index"
	"github.com/jbmorley/psion-software-index/extractor"
	"github.com/jbmorley/psion-software-index/test"
	mock_importer "github.com/jbmorley/psion-software-index/test/mock/importer"
)

// ExpectPackages sets up the package extraction and recognition calls for
// installers that contain nothing.
func expectPackages(ex *mock_importer.MockExtractor) {
	ex.EXPECT().ExtractPackage(matchCtx, gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ex.EXPECT().Recognize(matchCtx, gomock.Any()).Return(extractor.Recognition{Type: extractor.Unknown}).AnyTimes()
}

func TestIsolatedFailure(t *testing.T) {
	ctx, rec := test.Record(t)
	ctl := gomock.NewController(t)
	ex := mock_importer.NewMockExtractor(ctl)
	dir := t.TempDir()
	const bad = "app04.sis"
	for i := range 10 {
		n := fmt.Sprintf("app%02d.sis", i)
		test.WriteFile(t, dir, n, []byte(n))
	}
	expectPackages(ex)
	ex.EXPECT().
		Dumpsis(matchCtx, test.Base(bad)).
		Return(nil, &softwareindex.Error{
			Op:      "extractor.Dumpsis",
			Kind:    softwareindex.ErrCorruptFormat,
			Message: "unexpected end of data",
		})
	ex.EXPECT().
		Dumpsis(matchCtx, gomock.Not(test.Base(bad))).
		DoAndReturn(func(_ context.Context, p string) (*extractor.PackageInfo, error) {
			n := filepath.Base(p)
			var i uint32
			if _, err := fmt.Sscanf(n, "app%02d.sis", &i); err != nil {
				t.Error(err)
			}
			return &extractor.PackageInfo{
				UID:     0x10000000 + i,
				Version: "1.0",
				Name:    map[string]string{"en_GB": n},
			}, nil
		}).
		Times(9)

	opts := DefaultOptions()
	opts.Concurrency = 3
	im := New(ctx, ex, opts)
	rs, err := im.ImportAll(ctx, &dirSource{root: dir})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range rs {
		got = append(got, r.Name)
	}
	var want []string
	for i := range 10 {
		if n := fmt.Sprintf("app%02d.sis", i); n != bad {
			want = append(want, n)
		}
	}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
	if got, want := len(rec.Find(slog.LevelWarn, "artifact", bad)), 1; got != want {
		t.Errorf("warnings for %s: got: %d, want: %d", bad, got, want)
	}
	if got, want := len(rec.Find(slog.LevelWarn, "path", filepath.Join(dir, bad))), 1; got != want {
		t.Errorf("warnings with path: got: %d, want: %d", got, want)
	}
}

func TestImportAllSkips(t *testing.T) {
	missing := &extractor.PackageInfo{UID: 1, Name: map[string]string{"xx_XX": "?"}}
	unsupported := &softwareindex.Error{
		Op:      "extractor.Dumpsis",
		Kind:    softwareindex.ErrUnsupportedFormat,
		Message: "Only ER5 SIS files are supported",
	}
	setup := func(t *testing.T) (*mock_importer.MockExtractor, string) {
		ctl := gomock.NewController(t)
		ex := mock_importer.NewMockExtractor(ctl)
		dir := t.TempDir()
		test.WriteFile(t, dir, "nameless.sis", []byte("a"))
		test.WriteFile(t, dir, "old.sis", []byte("b"))
		expectPackages(ex)
		ex.EXPECT().Dumpsis(matchCtx, filepath.Join(dir, "nameless.sis")).Return(missing, nil)
		ex.EXPECT().Dumpsis(matchCtx, filepath.Join(dir, "old.sis")).Return(nil, unsupported).MaxTimes(1)
		return ex, dir
	}

	t.Run("Default", func(t *testing.T) {
		ctx, rec := test.Record(t)
		ex, dir := setup(t)
		im := New(ctx, ex, DefaultOptions())
		rs, err := im.ImportAll(ctx, &dirSource{root: dir})
		if err != nil {
			t.Fatal(err)
		}
		if len(rs) != 0 {
			t.Errorf("got: %d releases, want: 0", len(rs))
		}
		if got, want := len(rec.Find(slog.LevelWarn, "artifact", "nameless.sis")), 1; got != want {
			t.Errorf("nameless warnings: got: %d, want: %d", got, want)
		}
		if got := rec.Find(slog.LevelWarn, "artifact", "old.sis"); len(got) != 0 {
			t.Errorf("unsupported artifact logged at warning: %v", got)
		}
		if got, want := len(rec.Find(slog.LevelInfo, "artifact", "old.sis")), 1; got != want {
			t.Errorf("unsupported infos: got: %d, want: %d", got, want)
		}
	})

	t.Run("FatalMissingName", func(t *testing.T) {
		ctx := test.Logging(t)
		ex, dir := setup(t)
		opts := DefaultOptions()
		opts.FatalMissingName = true
		opts.Concurrency = 1
		im := New(ctx, ex, opts)
		_, err := im.ImportAll(ctx, &dirSource{root: dir})
		if !errors.Is(err, softwareindex.ErrMissingName) {
			t.Errorf("got: %v, want: %v", err, softwareindex.ErrMissingName)
		}
	})
}

func TestImportAllToolFailure(t *testing.T) {
	ctx := test.Logging(t)
	ctl := gomock.NewController(t)
	ex := mock_importer.NewMockExtractor(ctl)
	dir := t.TempDir()
	for i := range 5 {
		n := fmt.Sprintf("%d.sis", i)
		test.WriteFile(t, dir, n, []byte(n))
	}
	expectPackages(ex)
	failure := &softwareindex.Error{
		Op:    "extractor.Dumpsis",
		Kind:  softwareindex.ErrToolFailure,
		Inner: &extractor.ToolError{Args: []string{"lua", "dumpsis.lua"}, ExitCode: 1, Stderr: "boom"},
	}
	ex.EXPECT().
		Dumpsis(matchCtx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, p string) (*extractor.PackageInfo, error) {
			if filepath.Base(p) == "2.sis" {
				return nil, failure
			}
			return &extractor.PackageInfo{UID: 2, Name: map[string]string{"": "x"}}, nil
		}).
		MinTimes(1)

	im := New(ctx, ex, Options{Languages: []string{""}, Concurrency: 2})
	rs, err := im.ImportAll(ctx, &dirSource{root: dir})
	if !errors.Is(err, softwareindex.ErrToolFailure) {
		t.Fatalf("got: %v, want: %v", err, softwareindex.ErrToolFailure)
	}
	if rs != nil {
		t.Errorf("got: %v, want: nil", rs)
	}
	var te *extractor.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("no tool output in %v", err)
	}
	if got, want := te.Stderr, "boom"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

// Files inside containers must still exist while imports that were handed
// them are running.
func TestImportAllContainer(t *testing.T) {
	ctx := test.Logging(t)
	ctl := gomock.NewController(t)
	ex := mock_importer.NewMockExtractor(ctl)
	dir := t.TempDir()
	tmp := t.TempDir()
	var ms []test.Member
	for i := range 6 {
		ms = append(ms, test.File(fmt.Sprintf("pkg/%d.sis", i), fmt.Sprint(i)))
	}
	test.WriteFile(t, dir, "bundle.zip", test.Zip(t, ms...))
	test.WriteFile(t, dir, "loose.sis", []byte("loose"))
	expectPackages(ex)
	ex.EXPECT().
		Dumpsis(matchCtx, gomock.Any()).
		DoAndReturn(func(_ context.Context, p string) (*extractor.PackageInfo, error) {
			b, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			return &extractor.PackageInfo{UID: uint32(len(b)), Name: map[string]string{"": string(b)}}, nil
		}).
		Times(7)

	opts := DefaultOptions()
	opts.Concurrency = 4
	opts.TempDir = tmp
	im := New(ctx, ex, opts)
	rs, err := im.ImportAll(ctx, &dirSource{root: dir})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range rs {
		got = append(got, r.Reference.String()+"="+r.Name)
	}
	want := []string{
		"bundle.zip/pkg/0.sis=0",
		"bundle.zip/pkg/1.sis=1",
		"bundle.zip/pkg/2.sis=2",
		"bundle.zip/pkg/3.sis=3",
		"bundle.zip/pkg/4.sis=4",
		"bundle.zip/pkg/5.sis=5",
		"loose.sis=loose",
	}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
	ents, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range ents {
		t.Errorf("left behind: %s", e.Name())
	}
}
