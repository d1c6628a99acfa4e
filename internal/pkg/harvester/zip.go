package harvester

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// zipTimestamp formats a timestamp for use in zip file names, down to
// the millisecond so that back-to-back harvests never collide.
func zipTimestamp(t time.Time) string {
	return fmt.Sprintf("%s-%03dms", t.Format("2006-01-02-T-15h-04m-05s"), t.Nanosecond()/1e6)
}

// zipDirectory writes every file under srcDir into a zip archive at
// zipPath, with paths relative to srcDir.
func zipDirectory(srcDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return newStorageError(zipPath, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		w.Close()
		os.Remove(zipPath)
		return newStorageError(srcDir, err)
	}

	if err := w.Close(); err != nil {
		os.Remove(zipPath)
		return newStorageError(zipPath, err)
	}
	return nil
}
