// Package tmp provides scratch storage that cleans up after itself.
package tmp

import (
	"os"
)

// Dir is a private scratch directory. Its Close method removes the directory
// and everything in it.
type Dir struct {
	name string
}

// NewDir creates a new scratch directory in dir (or the default temporary
// directory if dir is empty), as [os.MkdirTemp] does.
//
// Callers should defer a call to Close immediately after a successful return.
func NewDir(dir, pattern string) (*Dir, error) {
	n, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &Dir{name: n}, nil
}

// Name reports the path of the scratch directory.
func (d *Dir) Name() string {
	return d.name
}

// Close removes the scratch directory and its contents.
//
// Files that were made read-only by an extraction are made writable before
// removal is retried.
func (d *Dir) Close() error {
	if err := os.RemoveAll(d.name); err == nil {
		return nil
	}
	if err := chmodTree(d.name); err != nil {
		return err
	}
	return os.RemoveAll(d.name)
}
