package softwareindex

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ImageExt is the extension used for stored icon payloads.
const ImageExt = ".gif"

// Image is an icon bitmap extracted from an artifact.
//
// Data holds encoded GIF bytes. The derived hash and filename depend on Data
// only, so identical bitmaps from different artifacts share one stored file.
type Image struct {
	Width  int
	Height int
	// BPP is the bit depth the bitmap was stored with in the artifact, not the
	// depth of the encoded payload.
	BPP  int
	Data []byte
}

// SHA256 reports the hex-encoded SHA-256 of the payload.
func (i *Image) SHA256() string {
	sum := sha256.Sum256(i.Data)
	return hex.EncodeToString(sum[:])
}

// Filename reports the content-addressed name for the payload.
func (i *Image) Filename() string {
	return i.SHA256() + ImageExt
}

// Write stores the payload in dir under its content-addressed name and
// reports the path written.
//
// Writing an image whose file already exists is a no-op.
func (i *Image) Write(dir string) (string, error) {
	if len(i.Data) == 0 {
		return "", &Error{
			Op:      "image.Write",
			Kind:    ErrInvalid,
			Message: "empty image payload",
		}
	}
	p := filepath.Join(dir, i.Filename())
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case errors.Is(err, nil):
	case errors.Is(err, fs.ErrExist):
		return p, nil
	default:
		return "", fmt.Errorf("softwareindex: unable to write image: %w", err)
	}
	if _, err := f.Write(i.Data); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("softwareindex: unable to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("softwareindex: unable to write image: %w", err)
	}
	return p, nil
}
