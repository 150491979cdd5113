// Package fifo manages the per-process notification channels.
//
// Each live process owns exactly one named pipe in the registry directory,
// named "fifo.<pid>". The pipe's existence tracks the process's presence
// record: it is created during registration, removed on deregistration, and
// pruned by any newly starting process when its record is gone.
package fifo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Prefix is the leading part of every channel name in a registry directory.
const Prefix = "fifo."

// ErrNoReader is returned by OpenWrite when no process is reading the
// other end of the pipe.
var ErrNoReader = errors.New("no one is waiting on the other end of the FIFO")

// Name returns the channel name for a process id.
func Name(pid int) string {
	return fmt.Sprintf("%s%d", Prefix, pid)
}

// Path returns the full channel path for a process id.
func Path(dir string, pid int) string {
	return filepath.Join(dir, Name(pid))
}

// Create makes the channel for pid inside dir. Creating a channel that
// already exists is not an error; concurrent registration makes this race
// expected.
func Create(dir string, pid int) error {
	err := unix.Mkfifo(Path(dir, pid), 0o600)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("mkfifo %s: %w", Path(dir, pid), err)
	}
	return nil
}

// Remove deletes the channel for pid inside dir. A channel that is already
// absent is not an error; concurrent deregistration makes this race expected.
func Remove(dir string, pid int) error {
	err := os.Remove(Path(dir, pid))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", Path(dir, pid), err)
	}
	return nil
}

// Prune removes every channel-named entry in dir that is not in the allowed
// set. Allowed keys are channel names as returned by Name. Returns the number
// of entries removed. Entries that vanish mid-prune are skipped silently.
func Prune(dir string, allowed map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read registry dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, Prefix) {
			continue
		}
		if _, ok := allowed[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("remove orphaned channel %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// OpenRead opens the channel for reading without blocking on a writer.
// Reads on the returned file never block: with no data queued they return
// zero bytes or EAGAIN, and the caller is expected to poll.
func OpenRead(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open channel for read: %w", err)
	}
	return f, nil
}

// OpenWrite opens the channel for writing without blocking on a reader.
// Returns ErrNoReader when no process has the read side open.
func OpenWrite(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNoReader)
		}
		return nil, fmt.Errorf("open channel for write: %w", err)
	}
	return f, nil
}
