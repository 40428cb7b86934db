package tmp

import (
	"io/fs"
	"os"
	"path/filepath"
)

// ChmodTree adds owner write and execute permissions to every directory under
// root, so that its entries can be unlinked.
func chmodTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return os.Chmod(p, fi.Mode().Perm()|0o700)
	})
}
