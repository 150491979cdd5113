package registry

import (
	"fmt"
	"os"
	"syscall"
)

// FileLock provides cross-process mutual exclusion over an already-open
// file using flock(2). The store file is its own lock: every process that
// rewrites or searches the store locks the same inode, which totally orders
// rewrites system-wide.
type FileLock struct {
	f *os.File
}

// NewFileLock wraps an open file handle. The caller retains ownership of
// the handle; Unlock does not close it.
func NewFileLock(f *os.File) *FileLock {
	return &FileLock{f: f}
}

// Lock acquires an exclusive lock, blocking until available.
func (fl *FileLock) Lock() error {
	if err := syscall.Flock(int(fl.f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	return nil
}

// RLock acquires a shared lock, blocking until available. Readers that only
// search the store (the notify path) use this so they exclude rewrites but
// not each other.
func (fl *FileLock) RLock() error {
	if err := syscall.Flock(int(fl.f.Fd()), syscall.LOCK_SH); err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	return nil
}

// TryLock attempts to acquire the exclusive lock without blocking.
// Returns true if the lock was acquired, false if it is held elsewhere.
func (fl *FileLock) TryLock() (bool, error) {
	err := syscall.Flock(int(fl.f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}
	return true, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := syscall.Flock(int(fl.f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("funlock: %w", err)
	}
	return nil
}
