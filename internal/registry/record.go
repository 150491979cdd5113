package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one presence entry: a process asserting it is alive.
//
// The identity is an opaque tag (the process's working directory in
// practice) kept for human inspection and path matching by the notify
// side. It may contain spaces. An identity containing a newline corrupts
// the line-oriented store; the codec rejects such lines on parse but the
// serializer does not guard against writing them. This mirrors the
// reference behavior and is a known limitation.
type Record struct {
	Timestamp int64  // seconds since epoch at last refresh
	PID       int    // owning process id
	Identity  string // opaque tag, remainder of the line
}

// ParseRecord parses a single store line of the form
// "<timestamp> <pid> <identity>". The identity is everything after the
// second space, and must be non-empty.
func ParseRecord(line string) (Record, error) {
	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Record{}, fmt.Errorf("malformed record %q: missing timestamp delimiter", line)
	}
	pid, identity, ok := strings.Cut(rest, " ")
	if !ok {
		return Record{}, fmt.Errorf("malformed record %q: missing pid delimiter", line)
	}
	if identity == "" {
		return Record{}, fmt.Errorf("malformed record %q: empty identity", line)
	}
	if !allDigits(ts) {
		return Record{}, fmt.Errorf("malformed record %q: bad timestamp", line)
	}
	if !allDigits(pid) {
		return Record{}, fmt.Errorf("malformed record %q: bad pid", line)
	}

	tsVal, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("malformed record %q: %w", line, err)
	}
	pidVal, err := strconv.Atoi(pid)
	if err != nil {
		return Record{}, fmt.Errorf("malformed record %q: %w", line, err)
	}

	return Record{Timestamp: tsVal, PID: pidVal, Identity: identity}, nil
}

// String serializes the record as a store line, without the trailing
// newline.
func (r Record) String() string {
	return fmt.Sprintf("%d %d %s", r.Timestamp, r.PID, r.Identity)
}

// Age returns how long ago the record was refreshed relative to now.
func (r Record) Age(now time.Time) time.Duration {
	return time.Duration(now.Unix()-r.Timestamp) * time.Second
}

// Stale reports whether the record is older than twice the heartbeat
// interval and therefore eligible for eviction.
func (r Record) Stale(now time.Time, interval time.Duration) bool {
	return r.Age(now) >= 2*interval
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
