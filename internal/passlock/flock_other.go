//go:build !unix

package passlock

import "os"

// No advisory locking on this platform.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
