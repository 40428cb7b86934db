package catalog

import (
	"path"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// IconsDir is the directory, relative to the catalog root, holding icon
// payloads.
const IconsDir = "icons"

type iconJSON struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type releaseJSON struct {
	Reference softwareindex.Reference   `json:"reference"`
	Kind      softwareindex.ReleaseKind `json:"kind"`
	SHA256    string                    `json:"sha256"`
	UID       string                    `json:"uid"`
	Name      string                    `json:"name"`
	Version   string                    `json:"version"`
	Tags      []string                  `json:"tags"`
	Icon      *iconJSON                 `json:"icon,omitempty"`
	PURL      string                    `json:"purl"`
}

type variantJSON struct {
	Identifier string        `json:"identifier"`
	Items      []releaseJSON `json:"items"`
}

type versionJSON struct {
	Version  string        `json:"version"`
	Variants []variantJSON `json:"variants"`
}

type programJSON struct {
	UID      string                      `json:"uid"`
	Name     string                      `json:"name"`
	Summary  *string                     `json:"summary"`
	Versions []versionJSON               `json:"versions"`
	Tags     []string                    `json:"tags"`
	Kinds    []softwareindex.ReleaseKind `json:"kinds"`
	Readme   string                      `json:"readme,omitempty"`
	Icon     *iconJSON                   `json:"icon,omitempty"`
}

func newIconJSON(img *softwareindex.Image) *iconJSON {
	if img == nil {
		return nil
	}
	return &iconJSON{
		Path:   path.Join(IconsDir, img.Filename()),
		Width:  img.Width,
		Height: img.Height,
	}
}

func newReleaseJSON(r *softwareindex.Release) releaseJSON {
	return releaseJSON{
		Reference: r.Reference,
		Kind:      r.Kind,
		SHA256:    r.SHA256,
		UID:       r.Identifier,
		Name:      r.Name,
		Version:   r.Version,
		Tags:      nonNil(r.Tags),
		Icon:      newIconJSON(r.Icon),
		PURL:      r.PURL(),
	}
}

func newProgramJSON(p *softwareindex.Program) programJSON {
	out := programJSON{
		UID:      p.Identifier,
		Name:     p.Name(),
		Versions: make([]versionJSON, len(p.Versions)),
		Tags:     nonNil(p.Tags),
		Kinds:    nonNil(p.Kinds),
		Readme:   p.Readme(),
		Icon:     newIconJSON(p.Icon()),
	}
	if s := p.Summary(); s != "" {
		out.Summary = &s
	}
	for i, v := range p.Versions {
		vj := versionJSON{
			Version:  v.Version,
			Variants: make([]variantJSON, len(v.Variants)),
		}
		for j, vr := range v.Variants {
			items := make([]releaseJSON, len(vr.Releases))
			for k, r := range vr.Releases {
				items[k] = newReleaseJSON(r)
			}
			vj.Variants[j] = variantJSON{Identifier: vr.SHA256, Items: items}
		}
		out.Versions[i] = vj
	}
	return out
}

// NonNil makes sure empty lists are written as "[]" instead of "null".
func nonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}
