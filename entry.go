package cachedb

import (
	"container/list"
	"sync/atomic"
)

// entry is the heap-stable record behind one key. Once inserted its address
// never changes: the shard's map owns it exclusively, and the LRU list only
// ever holds a non-owning back-reference, gated by the invariant that an
// entry is linked if and only if its useCount is zero. Removal is always
// initiated from the map, and targets either entries popped from the front
// of the LRU list or a just-inserted entry whose constructor failed, so no
// guard can ever observe a freed entry.
type entry[K comparable, V any] struct {
	key K

	lock  valueLocker
	value *V // nil only between insertion and constructor completion

	lruElem *list.Element // non-nil iff linked; guarded by the owning shard's lruMu

	useCount atomic.Int64
	expire   atomic.Bool
}

func newEntry[K comparable, V any](key K, newLock func() valueLocker) *entry[K, V] {
	e := &entry[K, V]{
		key:  key,
		lock: newLock(),
	}
	e.useCount.Store(1) // the constructing caller owns one use
	return e
}

// ReadGuard is a scoped handle to a value held under a read lock. Call
// Release exactly once, typically via defer, to release the value lock and
// restore the entry's LRU membership.
type ReadGuard[K comparable, V any] struct {
	shard    *shard[K, V]
	entry    *entry[K, V]
	released bool
}

// Get returns a copy of the cached value.
func (g *ReadGuard[K, V]) Get() V {
	return *g.entry.value
}

// SetExpire marks the underlying entry for early eviction. Advisory only:
// see shard.unuseEntry for the documented (and, matching the reference
// implementation, currently inert) intent.
func (g *ReadGuard[K, V]) SetExpire() {
	g.entry.expire.Store(true)
}

// Release releases the read lock and updates LRU membership. Safe to call
// more than once; only the first call has effect.
func (g *ReadGuard[K, V]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.entry.lock.RUnlock()
	g.shard.unuseEntry(g.entry)
}

// WriteGuard is a scoped handle to a value held under a write lock. Call
// Release exactly once, typically via defer.
type WriteGuard[K comparable, V any] struct {
	shard    *shard[K, V]
	entry    *entry[K, V]
	released bool
}

// Value returns a pointer to the cached value for in-place mutation.
func (g *WriteGuard[K, V]) Value() *V {
	return g.entry.value
}

// SetExpire marks the underlying entry for early eviction. Advisory only,
// see ReadGuard.SetExpire.
func (g *WriteGuard[K, V]) SetExpire() {
	g.entry.expire.Store(true)
}

// Release releases the write lock and updates LRU membership. Safe to call
// more than once; only the first call has effect.
func (g *WriteGuard[K, V]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.entry.lock.Unlock()
	g.shard.unuseEntry(g.entry)
}
