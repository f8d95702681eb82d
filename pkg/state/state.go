// Package state prepares the on-disk layout the engine persists into.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// PrepareJournalDir ensures the journal's parent directory exists with
// restrictive permissions and is writable. Symlinked or group-writable
// paths are rejected; the journal holds private message content.
func PrepareJournalDir(journalPath string) error {
	dir := filepath.Dir(journalPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create journal parent %s: %w", dir, err)
	}

	fi, err := os.Lstat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("journal parent is a symlink: %s", dir)
	}
	if !fi.IsDir() {
		return fmt.Errorf("journal parent is not a directory: %s", dir)
	}
	if fi.Mode().Perm()&0o022 != 0 {
		return fmt.Errorf("journal parent has group/other write permission: %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".validate-*")
	if err != nil {
		return fmt.Errorf("journal parent not writable: %s: %w", dir, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
