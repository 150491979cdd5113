package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/notifio/internal/fifo"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func storeLines(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, StoreFileName))
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func TestRewriteRegistersSelf(t *testing.T) {
	s, dir := newTestStore(t)

	allowed, err := s.Rewrite(100, "/home/alice/project", true)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	lines := storeLines(t, dir)
	if len(lines) != 1 {
		t.Fatalf("store has %d records, want 1", len(lines))
	}
	r, err := ParseRecord(lines[0])
	if err != nil {
		t.Fatalf("store line does not parse: %v", err)
	}
	if r.PID != 100 || r.Identity != "/home/alice/project" {
		t.Errorf("record = %+v", r)
	}

	if _, ok := allowed[fifo.Name(100)]; !ok {
		t.Error("allowed set missing own channel")
	}
	if _, err := os.Stat(fifo.Path(dir, 100)); err != nil {
		t.Error("channel not created during registration")
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	s, dir := newTestStore(t)

	for i := 0; i < 2; i++ {
		if _, err := s.Rewrite(100, "/p", true); err != nil {
			t.Fatalf("Rewrite() #%d error = %v", i+1, err)
		}
	}

	lines := storeLines(t, dir)
	if len(lines) != 1 {
		t.Errorf("store has %d records after double registration, want 1", len(lines))
	}
}

func TestRewriteEvictsStaleRecords(t *testing.T) {
	var warnings []string
	s, dir := newTestStore(t, WithWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}))

	// Two records well past 2x the 15s interval, one fresh peer.
	old := time.Now().Unix() - 40
	fresh := time.Now().Unix()
	content := fmt.Sprintf("%d 1 /dead/one\n%d 2 /dead/two\n%d 3 /alive\n", old, old, fresh)
	if err := os.WriteFile(filepath.Join(dir, StoreFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	allowed, err := s.Rewrite(100, "/me", true)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	lines := storeLines(t, dir)
	if len(lines) != 2 {
		t.Fatalf("store has %d records, want 2 (peer + self): %q", len(lines), lines)
	}
	for _, name := range []string{fifo.Name(3), fifo.Name(100)} {
		if _, ok := allowed[name]; !ok {
			t.Errorf("allowed set missing %s", name)
		}
	}
	if _, ok := allowed[fifo.Name(1)]; ok {
		t.Error("allowed set contains evicted record's channel")
	}

	found := false
	for _, w := range warnings {
		if w == "erased 2 outdated records" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %q, want aggregated eviction warning", warnings)
	}
}

func TestRewriteDropsMalformedLines(t *testing.T) {
	var warnings []string
	s, dir := newTestStore(t, WithWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}))

	fresh := time.Now().Unix()
	content := fmt.Sprintf("garbage\n%d 3 /alive\nalso not a record\n", fresh)
	if err := os.WriteFile(filepath.Join(dir, StoreFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Rewrite(100, "/me", true); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	// The store self-heals: only valid records survive.
	for _, line := range storeLines(t, dir) {
		if _, err := ParseRecord(line); err != nil {
			t.Errorf("store still contains malformed line %q", line)
		}
	}
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2 (one per malformed line): %q", len(warnings), warnings)
	}
}

func TestRewriteDeregisters(t *testing.T) {
	s, dir := newTestStore(t)

	if _, err := s.Rewrite(100, "/me", true); err != nil {
		t.Fatalf("register: %v", err)
	}
	allowed, err := s.Rewrite(100, "/me", false)
	if err != nil {
		t.Fatalf("deregister: %v", err)
	}

	if len(storeLines(t, dir)) != 0 {
		t.Error("record still present after deregistration")
	}
	if _, err := os.Stat(fifo.Path(dir, 100)); !os.IsNotExist(err) {
		t.Error("channel still present after deregistration")
	}
	if _, ok := allowed[fifo.Name(100)]; ok {
		t.Error("allowed set contains own channel after deregistration")
	}

	// Deregistering again must tolerate the already-absent channel.
	if _, err := s.Rewrite(100, "/me", false); err != nil {
		t.Errorf("second deregister error = %v", err)
	}
}

func TestConcurrentRewrites(t *testing.T) {
	dir := t.TempDir()

	const processes = 8
	const rewrites = 10

	var wg sync.WaitGroup
	for p := 0; p < processes; p++ {
		pid := 1000 + p
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := Open(dir)
			if err != nil {
				t.Errorf("Open() error = %v", err)
				return
			}
			defer s.Close()
			for i := 0; i < rewrites; i++ {
				if _, err := s.Rewrite(pid, fmt.Sprintf("/proc/%d", pid), true); err != nil {
					t.Errorf("Rewrite(pid=%d) error = %v", pid, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	lines := storeLines(t, dir)
	if len(lines) != processes {
		t.Fatalf("store has %d records, want %d", len(lines), processes)
	}
	seen := make(map[int]bool)
	for _, line := range lines {
		r, err := ParseRecord(line)
		if err != nil {
			t.Fatalf("store corrupted: %v", err)
		}
		if seen[r.PID] {
			t.Errorf("duplicate record for pid %d", r.PID)
		}
		seen[r.PID] = true
	}
}

func TestSnapshot(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Rewrite(100, "/a", true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Rewrite(200, "/b", true); err != nil {
		t.Fatal(err)
	}

	records, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Snapshot() returned %d records, want 2", len(records))
	}
	if records[0].PID != 100 || records[1].PID != 200 {
		t.Errorf("Snapshot() order = %d, %d", records[0].PID, records[1].PID)
	}
}

func TestFindMatch(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Rewrite(100, "/home/a/one", true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Rewrite(200, "/home/a/two", true); err != nil {
		t.Fatal(err)
	}

	r, ok, err := s.FindMatch([]string{"/home/a/two/sub"})
	if err != nil {
		t.Fatalf("FindMatch() error = %v", err)
	}
	if !ok || r.PID != 200 {
		t.Errorf("FindMatch() = %+v, %v; want pid 200", r, ok)
	}

	_, ok, err = s.FindMatch([]string{"/home/a/three"})
	if err != nil {
		t.Fatalf("FindMatch() error = %v", err)
	}
	if ok {
		t.Error("FindMatch() matched a path with no record")
	}
}

func TestOpenReadMissingStore(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenRead(filepath.Join(dir, "nothing-here"))
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("OpenRead() error = %v, want ErrNoStore", err)
	}

	// OpenRead must not create the directory or the store.
	if _, err := os.Stat(filepath.Join(dir, "nothing-here")); !os.IsNotExist(err) {
		t.Error("OpenRead() created the registry directory")
	}
}
