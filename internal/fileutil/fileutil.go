package fileutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockPollInterval is how often a blocked writer retries the file lock.
var LockPollInterval = 500 * time.Millisecond

// ErrLockWaitExceeded is returned alongside a successful write when the lock
// could not be acquired within the allowed wait and the write went ahead.
var ErrLockWaitExceeded = errors.New("lock wait exceeded")

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path names an existing directory.
func DirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WriteLocked writes data to path while holding an advisory lock on
// "<path>.lock", so concurrent exporters never interleave output. The lock
// file is removed before the lock is released.
//
// A maxWait of zero waits until the lock is free or ctx is cancelled. A
// positive maxWait bounds the wait; once it elapses the write proceeds
// without the lock and ErrLockWaitExceeded is returned after the data is on
// disk.
func WriteLocked(ctx context.Context, path string, data []byte, maxWait time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := acquire(ctx, lock, maxWait)
	if err != nil {
		return err
	}
	if locked {
		defer release(lock)
	}

	if err := writeAtomic(path, data); err != nil {
		return err
	}
	if !locked {
		return ErrLockWaitExceeded
	}
	return nil
}

func acquire(ctx context.Context, lock *flock.Flock, maxWait time.Duration) (bool, error) {
	start := time.Now()
	for {
		ok, err := lock.TryLock()
		if err != nil {
			return false, fmt.Errorf("acquire lock %s: %w", lock.Path(), err)
		}
		if ok {
			if current(lock) {
				return true, nil
			}
			// The previous holder removed the file after we opened it.
			_ = lock.Unlock()
			continue
		}
		if maxWait > 0 && time.Since(start) >= maxWait {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(LockPollInterval):
		}
	}
}

// current reports whether the held lock is still the file at its path.
func current(lock *flock.Flock) bool {
	held, err := lock.Stat()
	if err != nil {
		return false
	}
	onDisk, err := os.Stat(lock.Path())
	if err != nil {
		return false
	}
	return os.SameFile(held, onDisk)
}

func release(lock *flock.Flock) {
	_ = os.Remove(lock.Path())
	_ = lock.Unlock()
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
