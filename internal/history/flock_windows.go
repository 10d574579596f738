//go:build windows

package history

import "os"

// lockFile is a no-op on Windows; the in-process mutex serializes appends.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }
