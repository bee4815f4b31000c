// Package fileutil keeps fileguard's state private to the owning user.
// The audit database names every file an agent tried to touch; leaving it
// group-readable would hand out the same paths the ignore files protect.
//
// Unix gets standard mode bits (0600 files, 0700 directories). Windows
// silently ignores those bits, so the same operations apply an owner-only
// DACL instead.
package fileutil
