//go:build !windows

package fileutil

import "testing"

// assertPrivateWindows is a stub on Unix; the shared assertPrivate covers
// the mode-bit check.
func assertPrivateWindows(t *testing.T, _ string) {
	t.Helper()
}
