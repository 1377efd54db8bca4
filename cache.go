package cachedb

import "sync/atomic"

// Cache is a fixed array of N shards, each an independently locked LRU-
// adaptive store. Keys are routed to a shard by Bucketizer or, by default,
// by a reflection-based hash (see hash.go). A Cache is safe for concurrent
// use by any number of goroutines.
type Cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64

	lruDisabled atomic.Int32
	log         Logger
}

// Constructor is the signature user-supplied value constructors must have.
// It receives the key being constructed and returns the value to store, or
// an error, which aborts the insertion and is propagated to the caller
// unchanged.
type Constructor[K comparable, V any] func(key K) (V, error)

// NewCache builds a Cache with n shards. cfg's tunables are divided across
// shards as documented on Config; n must be positive.
func NewCache[K comparable, V any](n int, cfg Config, opts ...Option[K, V]) (*Cache[K, V], error) {
	if n <= 0 {
		return nil, &ErrInvalidConfig{Field: "n", Message: "must be greater than 0"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := cacheOptions[K, V]{
		newLock: func() valueLocker { return &rwMutex{} },
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hash == nil {
		h, err := defaultHasher[K]()
		if err != nil {
			// A Bucketizer key never reaches the hash (see bucketFor).
			var zero K
			if _, ok := any(zero).(Bucketizer); !ok {
				return nil, err
			}
		}
		o.hash = h
	}

	c := &Cache[K, V]{
		hash: o.hash,
		log:  o.logger,
	}
	c.shards = make([]*shard[K, V], n)
	for i := range c.shards {
		c.shards[i] = newShard[K, V](cfg, n, o.newLock, o.logger)
	}
	return c, nil
}

func (c *Cache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[bucketFor(key, len(c.shards), c.hash)]
}

// queryEntry looks key up and, on a hit, detaches it from the LRU and bumps
// its use count (see shard.useEntry) before releasing the map lock.
func (c *Cache[K, V]) queryEntry(key K) (*shard[K, V], *entry[K, V], error) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.items[key]
	if !ok {
		sh.mu.Unlock()
		return nil, nil, ErrNoEntry
	}
	sh.useEntry(e, int64(len(sh.items)))
	sh.mu.Unlock()
	return sh, e, nil
}

// queryOrInsertEntry looks key up; on a hit it behaves like queryEntry
// (hit=true). On a miss it runs steps (a)-(d) of the construction
// protocol: allocate the entry with an empty value and useCount 1, insert
// it into the map, acquire its value write lock while the map lock is
// still held (no contention is possible on a brand-new entry), then
// release the map lock. The caller is responsible for running the
// constructor and releasing the write lock (or downgrading it) afterward.
func (c *Cache[K, V]) queryOrInsertEntry(key K) (sh *shard[K, V], e *entry[K, V], hit bool) {
	sh = c.shardFor(key)
	sh.mu.Lock()

	if existing, ok := sh.items[key]; ok {
		sh.useEntry(existing, int64(len(sh.items)))
		sh.mu.Unlock()
		return sh, existing, true
	}

	e = newEntry[K, V](key, sh.newLock)
	sh.items[key] = e

	sh.lruMu.Lock()
	sh.updateMaxUsed(int64(len(sh.items)))
	sh.lruMu.Unlock()

	if c.lruDisabled.Load() == 0 {
		sh.maybeEvict()
	}

	e.lock.Lock()
	sh.mu.Unlock()
	return sh, e, false
}

// removeFailedConstruction removes a freshly-inserted, still-empty entry
// after its constructor returned an error, per §7: no partially
// constructed record may remain observable.
func (c *Cache[K, V]) removeFailedConstruction(sh *shard[K, V], e *entry[K, V]) {
	sh.mu.Lock()
	if cur, ok := sh.items[e.key]; ok && cur == e {
		delete(sh.items, e.key)
	}
	sh.mu.Unlock()
}

// Get looks key up and returns a read guard, acquiring the value lock via
// method. Returns ErrNoEntry if key is absent.
func (c *Cache[K, V]) Get(method LockingMethod, key K) (*ReadGuard[K, V], error) {
	sh, e, err := c.queryEntry(key)
	if err != nil {
		return nil, err
	}
	if err := method.acquireRead(e.lock); err != nil {
		sh.unuseEntry(e) // undo the use bumped by queryEntry on every error path
		return nil, err
	}
	if e.value == nil {
		// A concurrent constructor for this same key failed between our
		// lookup and our lock acquisition; treat it as absent.
		e.lock.RUnlock()
		sh.unuseEntry(e)
		return nil, ErrNoEntry
	}
	return &ReadGuard[K, V]{shard: sh, entry: e}, nil
}

// GetMut is Get, but acquires a write lock.
func (c *Cache[K, V]) GetMut(method LockingMethod, key K) (*WriteGuard[K, V], error) {
	sh, e, err := c.queryEntry(key)
	if err != nil {
		return nil, err
	}
	if err := method.acquireWrite(e.lock); err != nil {
		sh.unuseEntry(e)
		return nil, err
	}
	if e.value == nil {
		e.lock.Unlock()
		sh.unuseEntry(e)
		return nil, ErrNoEntry
	}
	return &WriteGuard[K, V]{shard: sh, entry: e}, nil
}

// Insert constructs a value for key if it is not already present. Returns
// true if ctor ran. If ctor returns an error, the error is propagated
// unchanged and no entry is left behind.
func (c *Cache[K, V]) Insert(key K, ctor Constructor[K, V]) (bool, error) {
	sh, e, hit := c.queryOrInsertEntry(key)
	if hit {
		sh.unuseEntry(e)
		return false, nil
	}

	v, err := ctor(key)
	if err != nil {
		e.lock.Unlock()
		c.removeFailedConstruction(sh, e)
		return false, err
	}
	e.value = &v
	e.lock.Unlock()
	sh.unuseEntry(e) // Insert keeps no guard, so the construction-time use is released here
	return true, nil
}

// GetOrInsert atomically looks key up or constructs it, returning a read
// guard either way. Concurrent GetOrInsert calls for the same key invoke
// ctor at most once; every other caller observes that call's result.
func (c *Cache[K, V]) GetOrInsert(method LockingMethod, key K, ctor Constructor[K, V]) (*ReadGuard[K, V], error) {
	sh, e, hit := c.queryOrInsertEntry(key)
	if hit {
		if err := method.acquireRead(e.lock); err != nil {
			sh.unuseEntry(e)
			return nil, err
		}
		if e.value == nil {
			e.lock.RUnlock()
			sh.unuseEntry(e)
			return nil, ErrNoEntry
		}
		return &ReadGuard[K, V]{shard: sh, entry: e}, nil
	}

	v, err := ctor(key)
	if err != nil {
		e.lock.Unlock()
		c.removeFailedConstruction(sh, e)
		return nil, err
	}
	e.value = &v
	e.lock.Downgrade()
	return &ReadGuard[K, V]{shard: sh, entry: e}, nil
}

// GetOrInsertMut is GetOrInsert, but returns a write guard.
func (c *Cache[K, V]) GetOrInsertMut(method LockingMethod, key K, ctor Constructor[K, V]) (*WriteGuard[K, V], error) {
	sh, e, hit := c.queryOrInsertEntry(key)
	if hit {
		if err := method.acquireWrite(e.lock); err != nil {
			sh.unuseEntry(e)
			return nil, err
		}
		if e.value == nil {
			e.lock.Unlock()
			sh.unuseEntry(e)
			return nil, ErrNoEntry
		}
		return &WriteGuard[K, V]{shard: sh, entry: e}, nil
	}

	v, err := ctor(key)
	if err != nil {
		e.lock.Unlock()
		c.removeFailedConstruction(sh, e)
		return nil, err
	}
	e.value = &v
	return &WriteGuard[K, V]{shard: sh, entry: e}, nil
}

// ContainsKey is a non-atomic existence probe: by the time it returns,
// another goroutine may have inserted or removed key. Most useful when LRU
// eviction is disabled and the caller otherwise controls insertion.
func (c *Cache[K, V]) ContainsKey(key K) bool {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.items[key]
	return ok
}

// Evict evicts up to n entries, distributing n/N to each shard, and
// returns the number actually evicted (which may be less than n if a
// shard's LRU list drains first, or if the distribution across shards is
// uneven). A no-op, returning 0, while LRU eviction is disabled.
func (c *Cache[K, V]) Evict(n int) int {
	if n <= 0 || c.lruDisabled.Load() != 0 {
		return 0
	}
	per := n / len(c.shards)
	total := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		total += sh.evict(per)
		sh.mu.Unlock()
	}
	return total
}

// DisableLRUEviction suppresses automatic eviction. Calls nest: pair every
// call with a later EnableLRUEviction.
func (c *Cache[K, V]) DisableLRUEviction() {
	c.lruDisabled.Add(1)
}

// EnableLRUEviction reverses one DisableLRUEviction call. Panics if called
// without a matching prior DisableLRUEviction.
func (c *Cache[K, V]) EnableLRUEviction() {
	for {
		cur := c.lruDisabled.Load()
		if cur <= 0 {
			panic("cachedb: EnableLRUEviction called without a matching DisableLRUEviction")
		}
		if c.lruDisabled.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// ConfigureTargetCooldown sets how many operations a shard processes
// between adaptive recalculations.
func (c *Cache[K, V]) ConfigureTargetCooldown(v uint32) {
	for _, sh := range c.shards {
		sh.maxusedCooldown.Store(int32(v))
	}
}

// ConfigureMinCapacityLimit sets the lower bound of the cold-target
// interpolation region, as a total across all shards.
func (c *Cache[K, V]) ConfigureMinCapacityLimit(v uint64) {
	per := int64(v) / int64(len(c.shards))
	for _, sh := range c.shards {
		sh.minEntriesLimit.Store(per)
	}
}

// ConfigureMaxCapacityLimit sets the upper bound of the cold-target
// interpolation region, as a total across all shards.
func (c *Cache[K, V]) ConfigureMaxCapacityLimit(v uint64) {
	per := int64(v) / int64(len(c.shards))
	for _, sh := range c.shards {
		sh.maxEntriesLimit.Store(per)
	}
}

// ConfigureMinCachePercent sets the cold-entry target, in percent, used at
// or above MaxCapacityLimit. Panics if v >= 100.
func (c *Cache[K, V]) ConfigureMinCachePercent(v uint8) {
	if v >= 100 {
		panic("cachedb: min cache percent must be less than 100")
	}
	for _, sh := range c.shards {
		sh.coldMin.Store(int32(v))
	}
}

// ConfigureMaxCachePercent sets the cold-entry target, in percent, used at
// or below MinCapacityLimit. Panics if v >= 100.
func (c *Cache[K, V]) ConfigureMaxCachePercent(v uint8) {
	if v >= 100 {
		panic("cachedb: max cache percent must be less than 100")
	}
	for _, sh := range c.shards {
		sh.coldMax.Store(int32(v))
	}
}

// ConfigureEvictBatch sets how many entries are removed at once when
// eviction fires.
func (c *Cache[K, V]) ConfigureEvictBatch(v uint8) {
	for _, sh := range c.shards {
		sh.evictBatch.Store(int32(v))
	}
}
