// Package cachedb implements an in-memory, concurrent key/value cache with
// adaptive least-recently-used eviction.
//
// Architectural overview
// =======================
//
// Items live in N sharded maps to reduce contention. Every item sits behind
// its own read/write lock; looking an item up returns a guard wrapping that
// lock. Items currently locked by a caller are never candidates for
// eviction: they are unlinked from their shard's LRU list the moment a
// lookup finds them, and re-linked at the tail only once the last
// outstanding guard is released. This is the one invariant the whole
// design rests on. See Cache, and the shard type's use/unuse methods.
//
// New items are constructed atomically: the constructor callback passed to
// Insert / GetOrInsert / GetOrInsertMut runs while the entry already holds
// its value write-lock but the shard's map lock has been released, so a
// slow constructor blocks only callers of the same key, never the rest of
// the shard.
//
// Concurrency model
// ==================
//
//   - sync.Mutex protects each shard's map (membership changes).
//   - A second sync.Mutex protects each shard's LRU list.
//   - Each entry's value sits behind its own read/write lock (see
//     LockingMethod for the ways to acquire it).
//
// Lock order is always: shard map lock, then shard LRU lock, then an
// entry's value lock. The map lock is released before a value lock is
// awaited or before a constructor runs. That is what lets a slow
// constructor or a long write-holder avoid blocking the rest of the shard.
//
// Non-goals
// =========
//
// Strict global LRU ordering (eviction is per shard only), fairness of
// lock acquisition, deterministic eviction counts under concurrent churn,
// cross-shard atomic operations, wall-clock expiration, size-in-bytes
// accounting, persistence, and replication are all out of scope.
package cachedb
