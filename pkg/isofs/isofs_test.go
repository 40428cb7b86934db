package isofs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/jbmorley/psion-software-index/test"
)

func TestFS(t *testing.T) {
	t.Parallel()
	members := []test.Member{
		test.File("readme.txt", "hello\n"),
		test.File("apps/game.sis", strings.Repeat("x", 5000)),
		test.File("apps/empty.app", ""),
		{Name: "docs", Mode: fs.ModeDir},
	}
	tt := []struct {
		Name      string
		RockRidge bool
		Want      []string
	}{
		{
			Name: "Plain",
			Want: []string{"APPS/EMPTY.APP", "APPS/GAME.SIS", "README.TXT"},
		},
		{
			Name:      "RockRidge",
			RockRidge: true,
			Want:      []string{"apps/empty.app", "apps/game.sis", "readme.txt"},
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			img := test.ISO(t, tc.RockRidge, members...)
			sys, err := New(bytes.NewReader(img))
			if err != nil {
				t.Fatal(err)
			}
			if err := fstest.TestFS(sys, tc.Want...); err != nil {
				t.Error(err)
			}
			b, err := fs.ReadFile(sys, tc.Want[1])
			if err != nil {
				t.Fatal(err)
			}
			if got, want := len(b), 5000; got != want {
				t.Errorf("got: %d bytes, want: %d", got, want)
			}
		})
	}
}

func TestRockRidgeModes(t *testing.T) {
	t.Parallel()
	img := test.ISO(t, true, test.File("bin/run", "#!"))
	sys, err := New(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}
	fi, err := sys.Stat("bin/run")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fi.Mode(), fs.FileMode(0o644); got != want {
		t.Errorf("got: %v, want: %v", got, want)
	}
	fi, err = sys.Stat("bin")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fi.Mode(), fs.ModeDir|0o755; got != want {
		t.Errorf("got: %v, want: %v", got, want)
	}
}

func TestSymlinks(t *testing.T) {
	t.Parallel()
	img := test.ISO(t, true,
		test.File("System/Apps/Game/Game.app", "app"),
		test.Symlink("latest", "System/Apps/Game"),
		test.Symlink("abs", "/System/Apps/Game/Game.app"),
		test.Symlink("up", "../../etc/passwd"),
		test.Symlink("loop", "loop"),
	)
	sys, err := New(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}

	links := map[string]string{}
	for _, n := range []string{"latest", "abs", "up", "loop"} {
		fi, err := sys.Lstat(n)
		if err != nil {
			t.Fatal(err)
		}
		if fi.Mode()&fs.ModeSymlink == 0 {
			t.Errorf("%s: not a symlink: %v", n, fi.Mode())
		}
		l, err := sys.ReadLink(n)
		if err != nil {
			t.Fatal(err)
		}
		links[n] = l
	}
	want := map[string]string{
		"latest": "System/Apps/Game",
		"abs":    "/System/Apps/Game/Game.app",
		"up":     "../../etc/passwd",
		"loop":   "loop",
	}
	if !cmp.Equal(links, want) {
		t.Error(cmp.Diff(want, links))
	}

	b, err := fs.ReadFile(sys, "latest/Game.app")
	if err == nil {
		t.Errorf("path through symlink should not resolve: %q", b)
	}
	b, err = fs.ReadFile(sys, "abs")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "app"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if _, err := sys.Open("up"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("escaping link: got: %v, want: %v", err, fs.ErrNotExist)
	}
	if _, err := sys.Open("loop"); err == nil {
		t.Error("expected error for link loop")
	}
	if _, err := sys.ReadLink("System"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("got: %v, want: %v", err, fs.ErrInvalid)
	}
}

func TestCorrupt(t *testing.T) {
	t.Parallel()
	tt := []struct {
		Name string
		In   []byte
	}{
		{Name: "Empty", In: nil},
		{Name: "Short", In: make([]byte, 17*2048)},
		{Name: "NotISO", In: bytes.Repeat([]byte("PK\x03\x04"), 20000)},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := New(bytes.NewReader(tc.In))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("got: %v, want: %v", err, ErrFormat)
			}
		})
	}
}

func TestTruncatedDirectory(t *testing.T) {
	t.Parallel()
	img := test.ISO(t, false, test.File("a/b/c.txt", "c"))
	// Cut the image inside the directory area.
	_, err := New(bytes.NewReader(img[:19*2048+10]))
	if !errors.Is(err, ErrFormat) {
		t.Errorf("got: %v, want: %v", err, ErrFormat)
	}
}

// ReaderAtOnly hides the Size method of the wrapped reader.
type readerAtOnly struct{ r io.ReaderAt }

func (r readerAtOnly) ReadAt(b []byte, off int64) (int, error) { return r.r.ReadAt(b, off) }

func TestOversizedDirectory(t *testing.T) {
	t.Parallel()
	img := test.ISO(t, false, test.File("a.txt", "a"))
	// Root directory record in the primary volume descriptor: data length.
	binary.LittleEndian.PutUint32(img[16*2048+156+10:], 1<<30)
	binary.BigEndian.PutUint32(img[16*2048+156+14:], 1<<30)
	for name, r := range map[string]io.ReaderAt{
		"Sized":   bytes.NewReader(img),
		"Unsized": readerAtOnly{bytes.NewReader(img)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(r)
			if !errors.Is(err, ErrFormat) {
				t.Errorf("got: %v, want: %v", err, ErrFormat)
			}
		})
	}
}

func TestParseSL(t *testing.T) {
	tt := []struct {
		Name    string
		Entries [][]byte
		Want    string
	}{
		{
			Name:    "Relative",
			Entries: [][]byte{{0, 1, 'a', 0, 2, 'b', 'c'}},
			Want:    "a/bc",
		},
		{
			Name:    "Root",
			Entries: [][]byte{{0x08, 0, 0, 3, 'u', 's', 'r'}},
			Want:    "/usr",
		},
		{
			Name:    "Parent",
			Entries: [][]byte{{0x04, 0, 0x02, 0, 0, 1, 'x'}},
			Want:    ".././x",
		},
		{
			Name:    "ContinuedComponent",
			Entries: [][]byte{{0x01, 2, 'a', 'b'}, {0, 2, 'c', 'd'}},
			Want:    "abcd",
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			var b strings.Builder
			for _, e := range tc.Entries {
				parseSL(e, &b)
			}
			if got := strings.TrimSuffix(b.String(), "\x00"); got != tc.Want {
				t.Errorf("got: %q, want: %q", got, tc.Want)
			}
		})
	}
}

func TestReadDirPaging(t *testing.T) {
	t.Parallel()
	img := test.ISO(t, true, test.File("a", "1"), test.File("b", "2"), test.File("c", "3"))
	sys, err := New(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}
	f, err := sys.Open(".")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := f.(fs.ReadDirFile)
	var got []string
	for {
		es, err := d.ReadDir(2)
		for _, e := range es {
			got = append(got, e.Name())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if want := []string{"a", "b", "c"}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
}
