package files

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// copyTree copies src to dst within fs, preserving file modes.
func copyTree(fs afero.Fs, src, dst string, overwrite bool) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !overwrite {
			if exists, err := afero.Exists(fs, target); err != nil || exists {
				return err
			}
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return afero.WriteFile(fs, target, data, info.Mode().Perm())
	})
}
