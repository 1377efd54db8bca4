package cachedb

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// shard is one partition of the cache's keyspace: a mutation-locked map of
// entries, plus an independently locked LRU list threading through those
// same entries, plus the adaptive eviction controller's counters.
//
// Lock order, always: mu (the map lock), then lruMu, then an entry's own
// value lock. mu is released before a value lock is awaited or before a
// constructor runs.
type shard[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]*entry[K, V]

	lruMu   sync.Mutex
	lruList *list.List

	cold         atomic.Int64
	capacityHint atomic.Int64 // estimated backing-map size; see maybeEvict

	maxused          atomic.Int64
	maxusedCountdown atomic.Int32

	maxusedCooldown  atomic.Int32
	maxusedReduction atomic.Int64
	minEntriesLimit  atomic.Int64
	maxEntriesLimit  atomic.Int64

	coldMax    atomic.Int32 // percent
	coldMin    atomic.Int32 // percent
	coldTarget atomic.Int32 // percent, recomputed alongside the maxused decay step

	evictBatch atomic.Int32

	newLock func() valueLocker
	log     Logger
}

func newShard[K comparable, V any](cfg Config, n int, newLock func() valueLocker, log Logger) *shard[K, V] {
	s := &shard[K, V]{
		items:   make(map[K]*entry[K, V]),
		lruList: list.New(),
		newLock: newLock,
		log:     log,
	}
	s.capacityHint.Store(8)
	s.maxusedCooldown.Store(int32(cfg.TargetCooldown))
	s.maxusedReduction.Store(10000) // no public setter, matches the reference implementation
	s.minEntriesLimit.Store(int64(cfg.MinCapacityLimit) / int64(n))
	s.maxEntriesLimit.Store(int64(cfg.MaxCapacityLimit) / int64(n))
	s.coldMax.Store(int32(cfg.MaxCachePercent))
	s.coldMin.Store(int32(cfg.MinCachePercent))
	s.evictBatch.Store(int32(cfg.EvictBatch))
	s.coldTarget.Store(int32(cfg.MaxCachePercent))
	return s
}

// useEntry detaches entry from the LRU list if it is currently linked and
// bumps its use count. Called with mu held; mapLen is len(s.items) as
// observed by the caller under that same lock.
func (s *shard[K, V]) useEntry(e *entry[K, V], mapLen int64) {
	s.lruMu.Lock()
	if e.lruElem != nil {
		s.lruList.Remove(e.lruElem)
		e.lruElem = nil
		s.cold.Add(-1)
	}
	s.updateMaxUsed(mapLen)
	e.useCount.Add(1)
	s.lruMu.Unlock()
}

// unuseEntry is called on guard release, with mu NOT held. When the use
// count reaches zero the entry is linked back onto the LRU tail (the warm
// end).
func (s *shard[K, V]) unuseEntry(e *entry[K, V]) {
	s.lruMu.Lock()
	if e.useCount.Add(-1) == 0 {
		s.cold.Add(1)
		// TODO(expire): the documented intent is to push to the front
		// when e.expire is set, evicting it sooner. The reference
		// implementation never actually does this; we match it.
		e.lruElem = s.lruList.PushBack(e)
	}
	s.lruMu.Unlock()
}

// updateMaxUsed maintains the decaying peak of in-use entries. Called with
// lruMu held.
func (s *shard[K, V]) updateMaxUsed(mapLen int64) {
	cold := s.cold.Load()
	nowUsed := mapLen - cold
	if nowUsed < 0 {
		nowUsed = 0
	}

	for {
		cur := s.maxused.Load()
		if nowUsed <= cur {
			break
		}
		if s.maxused.CompareAndSwap(cur, nowUsed) {
			break
		}
	}

	countdown := s.maxusedCountdown.Load()
	if countdown > 0 {
		s.maxusedCountdown.Store(countdown - 1)
		return
	}

	s.maxusedCountdown.Store(s.maxusedCooldown.Load())
	maxused := s.maxused.Load()
	reduction := s.maxusedReduction.Load()
	if maxused > 0 && maxused != nowUsed && reduction > 0 {
		decayed := maxused - (maxused/reduction + 1)
		if decayed < 0 {
			decayed = 0
		}
		s.maxused.Store(decayed)
		if s.log != nil {
			s.log.Debugw("maxused decayed", "from", maxused, "to", decayed, "now_used", nowUsed)
		}
	}
	s.recomputeColdTarget()
}

// recomputeColdTarget linearly interpolates the cold-entry percentage
// target between coldMax (at or below minEntriesLimit) and coldMin (at or
// above maxEntriesLimit).
func (s *shard[K, V]) recomputeColdTarget() int32 {
	maxused := s.maxused.Load()
	minLim := s.minEntriesLimit.Load()
	maxLim := s.maxEntriesLimit.Load()
	coldMax := s.coldMax.Load()
	coldMin := s.coldMin.Load()

	var target int32
	switch {
	case maxLim <= minLim:
		target = coldMin
	case maxused <= minLim:
		target = coldMax
	case maxused >= maxLim:
		target = coldMin
	default:
		frac := float64(maxused-minLim) / float64(maxLim-minLim)
		target = coldMax - int32(frac*float64(coldMax-coldMin))
	}
	s.coldTarget.Store(target)
	return target
}

// maybeEvict is called before each speculative insertion (i.e. right after
// a new placeholder entry has been added to the map, while mu is still
// held). Go's map has no capacity() introspection the way the reference
// implementation's underlying HashSet does, so capacityHint stands in for
// "room left in the backing allocation": it starts small and doubles each
// time the shard is allowed to grow, giving the same qualitative behavior
// (small shards fill freely; large ones get capped by the cold-entry
// ratio) without needing to see real map internals.
func (s *shard[K, V]) maybeEvict() {
	mapLen := int64(len(s.items))
	capHint := s.capacityHint.Load()
	if mapLen < capHint {
		return
	}

	cold := s.cold.Load()
	target := int64(s.recomputeColdTarget())
	var coldPercent int64
	if mapLen > 0 {
		coldPercent = cold * 100 / mapLen
	}

	if coldPercent > target {
		n := int(s.evictBatch.Load())
		evicted := s.evict(n)
		if evicted > 0 && s.log != nil {
			s.log.Debugw("evicted batch", "count", evicted, "cold", s.cold.Load(), "target", target)
		}
		return
	}
	s.capacityHint.Store(capHint * 2)
}

// evict pops up to n entries from the LRU front and removes them from the
// map. Called with mu already held by the caller. Returns the number
// actually evicted, which may be less than n if the list drains.
func (s *shard[K, V]) evict(n int) int {
	evicted := 0
	for i := 0; i < n; i++ {
		s.lruMu.Lock()
		front := s.lruList.Front()
		if front == nil {
			s.lruMu.Unlock()
			break
		}
		s.lruList.Remove(front)
		s.cold.Add(-1)
		s.lruMu.Unlock()

		e := front.Value.(*entry[K, V])
		delete(s.items, e.key)
		evicted++
	}
	return evicted
}

// ShardStats is a point-in-time snapshot of one shard's adaptive state.
type ShardStats struct {
	Len        int
	Cold       int64
	MaxUsed    int64
	ColdTarget int32
}

func (s *shard[K, V]) stats() ShardStats {
	s.mu.Lock()
	n := len(s.items)
	s.mu.Unlock()
	return ShardStats{
		Len:        n,
		Cold:       s.cold.Load(),
		MaxUsed:    s.maxused.Load(),
		ColdTarget: s.coldTarget.Load(),
	}
}
