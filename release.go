package softwareindex

import (
	"fmt"

	"github.com/package-url/packageurl-go"
)

// UnknownVersion is reported for artifacts that carry no version metadata.
const UnknownVersion = "Unknown"

// ReleaseKind is the packaging of a discovered artifact.
type ReleaseKind int

// Known release kinds.
const (
	_ ReleaseKind = iota

	Installer
	Standalone
)

// String implements [fmt.Stringer].
func (k ReleaseKind) String() string {
	switch k {
	case Installer:
		return "installer"
	case Standalone:
		return "standalone"
	default:
	}
	return fmt.Sprintf("ReleaseKind(%d)", int(k))
}

// MarshalText implements [encoding.TextMarshaler].
func (k ReleaseKind) MarshalText() ([]byte, error) {
	switch k {
	case Installer, Standalone:
		return []byte(k.String()), nil
	default:
	}
	return nil, fmt.Errorf("softwareindex: invalid ReleaseKind %d", int(k))
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *ReleaseKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case Installer.String():
		*k = Installer
	case Standalone.String():
		*k = Standalone
	default:
		return fmt.Errorf("softwareindex: unknown release kind %q", string(b))
	}
	return nil
}

// Release is a single discovered artifact instance.
//
// Releases are constructed once during import and must not be modified
// afterwards; [Program] values share them.
type Release struct {
	// Reference locates the artifact within its source.
	Reference Reference
	// Kind reports whether the artifact is an installer package or a
	// directly executable program.
	Kind ReleaseKind
	// Identifier is the cross-version program identifier. For artifacts with
	// embedded metadata this is the UID formatted as "0x%08x"; otherwise it's
	// the content hash.
	Identifier string
	// SHA256 is the hex-encoded SHA-256 of the artifact bytes.
	SHA256  string
	Name    string
	Version string
	// Icons holds every icon candidate found for the artifact, and Icon the
	// one chosen to represent it, if any.
	Icons   []Image
	Icon    *Image
	Summary string
	Readme  string
	// Tags is sorted and deduplicated.
	Tags []string
}

// PURL reports a package URL describing the release.
func (r *Release) PURL() string {
	q := packageurl.Qualifiers{
		{Key: "checksum", Value: "sha256:" + r.SHA256},
	}
	return packageurl.NewPackageURL(packageurl.TypeGeneric, "", r.Name, r.Version, q, "").ToString()
}
