package registry

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/notifio/internal/fifo"
	"github.com/Iron-Ham/notifio/internal/logging"
)

// StoreFileName is the name of the record database inside a registry
// directory.
const StoreFileName = "db"

// ErrNoStore is returned by OpenRead when the store file does not exist,
// meaning no process has ever registered for this user.
var ErrNoStore = errors.New("no registry store")

// defaultInterval matches the reference heartbeat of 15 seconds.
const defaultInterval = 15 * time.Second

// Store is the shared per-user record database. It owns the open file
// handle and never exposes it: all access goes through Rewrite, Snapshot,
// and FindMatch, each of which holds the appropriate flock(2) lock for the
// duration of the operation.
//
// Methods are additionally serialized in-process by an internal mutex,
// since flock does not exclude two goroutines sharing one descriptor.
type Store struct {
	mu       sync.Mutex
	dir      string
	f        *os.File
	lock     *FileLock
	interval time.Duration
	logger   *logging.Logger
	warnf    func(format string, args ...any)
}

// Option configures a Store.
type Option func(*Store)

// WithInterval sets the heartbeat interval used for staleness decisions.
func WithInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithWarnFunc sets the sink for the non-fatal data warnings required by
// the registry protocol (malformed lines, evicted stale records). The
// default discards them.
func WithWarnFunc(f func(format string, args ...any)) Option {
	return func(s *Store) { s.warnf = f }
}

// Open opens (creating if necessary) the store for the given registry
// directory, read-write. The directory is created as well; registration is
// the first store interaction a process performs.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, StoreFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return newStore(dir, f, opts...), nil
}

// OpenRead opens the store read-only, without creating anything. Returns
// ErrNoStore if it does not exist. Used by the notify and status paths,
// which must not leave partial state behind for users that never ran a
// listener.
func OpenRead(dir string, opts ...Option) (*Store, error) {
	f, err := os.Open(filepath.Join(dir, StoreFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoStore
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	return newStore(dir, f, opts...), nil
}

func newStore(dir string, f *os.File, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		f:        f,
		lock:     NewFileLock(f),
		interval: defaultInterval,
		logger:   logging.NopLogger(),
		warnf:    func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("registry")
	return s
}

// Dir returns the registry directory this store lives in.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the store handle. It does not deregister; that is the
// heartbeat task's final rewrite.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Rewrite replaces the store's entire content while holding the exclusive
// lock: every line is parsed, stale records and any prior record for
// selfPID are dropped, and if createSelf is true a fresh record for
// (now, selfPID, identity) is appended and the process's channel is
// ensured to exist. With createSelf false (the shutdown path) the channel
// is removed instead.
//
// Returns the set of channel names corresponding to surviving records.
// Malformed lines are dropped with a warning and never abort the rewrite.
func (s *Store) Rewrite(selfPID int, identity string, createSelf bool) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	records, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	survivors := records[:0]
	outdated := 0
	for _, r := range records {
		if r.Stale(now, s.interval) {
			outdated++
			continue
		}
		if r.PID == selfPID {
			continue
		}
		survivors = append(survivors, r)
	}
	if outdated > 0 {
		s.warnf("erased %d outdated record%s", outdated, plural(outdated))
		s.logger.Info("evicted stale records", "count", outdated)
	}

	if createSelf {
		survivors = append(survivors, Record{
			Timestamp: now.Unix(),
			PID:       selfPID,
			Identity:  identity,
		})
		if err := fifo.Create(s.dir, selfPID); err != nil {
			return nil, err
		}
	} else {
		if err := fifo.Remove(s.dir, selfPID); err != nil {
			return nil, err
		}
	}

	allowed := make(map[string]struct{}, len(survivors))
	for _, r := range survivors {
		allowed[fifo.Name(r.PID)] = struct{}{}
	}

	if err := s.writeAllLocked(survivors); err != nil {
		return nil, err
	}

	s.logger.Debug("rewrite complete",
		"records", len(survivors),
		"evicted", outdated,
		"create_self", createSelf,
	)
	return allowed, nil
}

// Snapshot returns every parseable record currently in the store, in file
// order, under a shared lock. Stale records are included; callers decide
// how to present them.
func (s *Store) Snapshot() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.readAllLocked()
}

// FindMatch returns the first record whose identity covers any of the
// candidate paths, scanning in file order under a shared lock. Candidates
// are tried in order for each record, so an explicit path argument takes
// precedence over the working directory within a record.
func (s *Store) FindMatch(candidates []string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return Record{}, false, fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	records, err := s.readAllLocked()
	if err != nil {
		return Record{}, false, err
	}

	for _, r := range records {
		for _, c := range candidates {
			if MatchIdentity(r.Identity, c) {
				return r, true, nil
			}
		}
	}
	return Record{}, false, nil
}

// readAllLocked parses the whole store. Lines that fail to parse are
// dropped with a warning. The caller must hold the lock.
func (s *Store) readAllLocked() ([]Record, error) {
	if _, err := s.f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek store: %w", err)
	}

	var records []Record
	scanner := bufio.NewScanner(s.f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		r, err := ParseRecord(line)
		if err != nil {
			s.warnf("ignoring malformed record:\n%s", line)
			s.logger.Warn("malformed record dropped", "line", line)
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	return records, nil
}

// writeAllLocked replaces the store content with the given records. The
// caller must hold the exclusive lock, so the truncate-then-write pair is
// never externally observable as a partial state.
func (s *Store) writeAllLocked(records []Record) error {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}

	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate store: %w", err)
	}
	if _, err := s.f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek store: %w", err)
	}
	if _, err := s.f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
