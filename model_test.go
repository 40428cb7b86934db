package softwareindex

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/package-url/packageurl-go"
)

func TestReferenceAppend(t *testing.T) {
	base := Reference{{Name: "psion.zip"}}
	a := base.Append(ReferenceItem{Name: "a.sis"})
	b := base.Append(ReferenceItem{Name: "b.sis"})
	if got, want := a.String(), "psion.zip/a.sis"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := b.Leaf().Name, "b.sis"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := len(base), 1; got != want {
		t.Errorf("base modified: got: %d, want: %d", got, want)
	}
}

func TestReferenceJSON(t *testing.T) {
	ref := Reference{
		{Name: "item", URL: "https://archive.org/details/item"},
		{Name: "inner.sis"},
	}
	b, err := json.Marshal(ref)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"name":"item","url":"https://archive.org/details/item"},{"name":"inner.sis","url":null}]`
	if got := string(b); got != want {
		t.Error(cmp.Diff(want, got))
	}
	var got Reference
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(got, ref) {
		t.Error(cmp.Diff(ref, got))
	}
}

func TestReleaseKindText(t *testing.T) {
	b, err := json.Marshal([]ReleaseKind{Installer, Standalone})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `["installer","standalone"]`; got != want {
		t.Errorf("got: %s, want: %s", got, want)
	}
	if _, err := json.Marshal(ReleaseKind(0)); err == nil {
		t.Error("expected error for zero kind")
	}
}

func TestReleasePURL(t *testing.T) {
	r := Release{
		Name:    "Vexed",
		Version: "2.1",
		SHA256:  strings.Repeat("ab", 32),
	}
	p, err := packageurl.FromString(r.PURL())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.Type, packageurl.TypeGeneric; got != want {
		t.Errorf("type: got: %q, want: %q", got, want)
	}
	if got, want := p.Name, r.Name; got != want {
		t.Errorf("name: got: %q, want: %q", got, want)
	}
	if got, want := p.Version, r.Version; got != want {
		t.Errorf("version: got: %q, want: %q", got, want)
	}
	if got, want := p.Qualifiers.Map()["checksum"], "sha256:"+r.SHA256; got != want {
		t.Errorf("checksum: got: %q, want: %q", got, want)
	}
}

func TestImageContentAddressing(t *testing.T) {
	dir := t.TempDir()
	img := Image{Width: 24, Height: 24, BPP: 4, Data: []byte("GIF89a not really")}
	p, err := img.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := filepath.Base(p), img.SHA256()+ImageExt; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, img.Data) {
		t.Error("payload mismatch")
	}

	// Same payload, different metadata: same file.
	dup := Image{Width: 32, Height: 32, BPP: 8, Data: bytes.Clone(img.Data)}
	p2, err := dup.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	if p2 != p {
		t.Errorf("got: %q, want: %q", p2, p)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(ents), 1; got != want {
		t.Errorf("got: %d files, want: %d", got, want)
	}

	if _, err := (&Image{}).Write(dir); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestProgramDerived(t *testing.T) {
	icon := &Image{Width: 16, Height: 16, BPP: 4, Data: []byte{1}}
	p := Program{
		Releases: []*Release{
			{Name: "", Summary: ""},
			{Name: "First", Readme: "read me"},
			{Name: "Second", Summary: "summary", Icon: icon},
		},
	}
	if got, want := p.Name(), "First"; got != want {
		t.Errorf("name: got: %q, want: %q", got, want)
	}
	if got, want := p.Summary(), "summary"; got != want {
		t.Errorf("summary: got: %q, want: %q", got, want)
	}
	if got, want := p.Readme(), "read me"; got != want {
		t.Errorf("readme: got: %q, want: %q", got, want)
	}
	if got := p.Icon(); got != icon {
		t.Errorf("icon: got: %v, want: %v", got, icon)
	}
}
