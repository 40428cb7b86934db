package softwareindex

// Program aggregates every Release sharing one identifier.
//
// Programs are computed from scratch on every indexing run; see the catalog
// package for construction.
type Program struct {
	Identifier string
	// Releases is in import order. The derived accessors depend on it.
	Releases []*Release
	// Versions is in natural version order.
	Versions []Version
	// Tags and Kinds are unions over Releases, sorted.
	Tags  []string
	Kinds []ReleaseKind
}

// Name reports the name of the first Release that has one.
func (p *Program) Name() string {
	for _, r := range p.Releases {
		if r.Name != "" {
			return r.Name
		}
	}
	return ""
}

// Summary reports the summary of the first Release that has one.
func (p *Program) Summary() string {
	for _, r := range p.Releases {
		if r.Summary != "" {
			return r.Summary
		}
	}
	return ""
}

// Readme reports the readme of the first Release that has one.
func (p *Program) Readme() string {
	for _, r := range p.Releases {
		if r.Readme != "" {
			return r.Readme
		}
	}
	return ""
}

// Icon reports the icon of the first Release that has one.
func (p *Program) Icon() *Image {
	for _, r := range p.Releases {
		if r.Icon != nil {
			return r.Icon
		}
	}
	return nil
}

// Version is every Release of a Program declaring the same version string.
type Version struct {
	Version string
	// Variants groups Releases by content hash, in order of first appearance.
	Variants []Variant
}

// Releases reports every Release in the Version, grouped by Variant.
func (v *Version) Releases() []*Release {
	var out []*Release
	for _, vr := range v.Variants {
		out = append(out, vr.Releases...)
	}
	return out
}

// Variant is a set of byte-identical Releases.
type Variant struct {
	SHA256   string
	Releases []*Release
}

// Summary is the set of headline counts for a catalog.
type Summary struct {
	// Releases is the total number of Releases.
	Releases int `json:"installerCount"`
	// Identifiers is the number of distinct identifiers.
	Identifiers int `json:"uidCount"`
	// Versions is the number of distinct (identifier, version) pairs.
	Versions int `json:"versionCount"`
	// Hashes is the number of distinct content hashes.
	Hashes int `json:"shaCount"`
}
