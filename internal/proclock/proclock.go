// Package proclock serializes concurrent invocations with a file lock.
package proclock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DefaultPath returns the lock file used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "cfddns.lock")
}

// Acquire takes a non-blocking exclusive lock on path.
// held is false when another process already holds the lock.
// The caller keeps the lock until release is called, normally at process exit.
func Acquire(path string) (release func(), held bool, err error) {
	lock := flock.New(path)
	held, err = lock.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !held {
		return nil, false, nil
	}
	return func() { _ = lock.Unlock() }, true, nil
}
