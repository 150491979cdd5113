// Package registry implements the shared per-user presence database.
//
// Any number of uncoordinated processes belonging to one user share a single
// flat file of presence records ("<timestamp> <pid> <identity>" lines) in a
// well-known directory, plus one notification channel per process managed by
// the fifo package. There is no central coordinator: correctness rests on a
// whole-file advisory lock and on the rewrite discipline.
//
// # Rewrite discipline
//
// The store is never patched in place. Every mutation is a full
// read-filter-rewrite performed under the exclusive lock ([Store.Rewrite]):
// parse all lines, drop stale records and the caller's own prior record,
// optionally append a fresh record for the caller, and write the surviving
// set back. The file is therefore always a complete, self-consistent
// snapshot, and malformed or stale data self-heals on the next rewrite by
// any process.
//
// A record is stale once its age reaches twice the heartbeat interval;
// stale records and their channels belong to processes assumed dead and may
// be evicted by any process holding the lock.
//
// # Lock model
//
// The store file doubles as the lock file. Rewrites take flock(2) LOCK_EX;
// read-only searches ([Store.Snapshot], [Store.FindMatch]) take LOCK_SH.
// Locks are held for the bounded duration of one list-filter-write pass and
// released immediately after, so no operation blocks peers for long.
package registry
