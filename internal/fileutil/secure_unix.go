//go:build !windows

package fileutil

import "os"

// MkdirPrivate creates the directory tree with mode 0700 on every new
// component.
func MkdirPrivate(path string) error {
	return os.MkdirAll(path, 0700)
}

// Restrict clamps an existing file to owner-only access. SQLite creates
// the database subject to the umask, so the store calls this once the
// file exists; the -wal and -shm sidecars copy the main file's mode.
func Restrict(path string) error {
	return os.Chmod(path, 0600)
}
