// Package fsutil holds small filesystem helpers shared by the on-disk stores.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks files that are still being written.
const TempSuffix = ".tmp"

// WriteAtomic writes data to dir/name via a synced temp file and rename so
// readers never observe a partial file.
func WriteAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*"+TempSuffix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		cleanup()
		return err
	}
	return nil
}

// IsVisible reports whether name is a finished, non-hidden file name.
func IsVisible(name string) bool {
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, TempSuffix)
}
