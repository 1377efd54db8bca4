package cachedb

// Option configures optional, type-parameter-dependent aspects of a Cache
// at construction time: the key-to-bucket hash, the value-lock
// implementation, and the internal diagnostic logger. Most callers need
// none of these; NewCache's defaults (reflection-based hashing,
// sync.RWMutex-backed value locks, no logging) suit ordinary key types.
type Option[K comparable, V any] func(*cacheOptions[K, V])

type cacheOptions[K comparable, V any] struct {
	hash    func(K) uint64
	newLock func() valueLocker
	logger  Logger
}

// WithHasher overrides the default key-to-bucket hash. Required for key
// types defaultHasher cannot derive a hash for (structs, arrays, pointers,
// interfaces) unless K implements Bucketizer.
func WithHasher[K comparable, V any](h func(K) uint64) Option[K, V] {
	return func(o *cacheOptions[K, V]) {
		o.hash = h
	}
}

// WithReentrantValueLocks makes every entry's value lock a reader-
// preferring lock that lets the same goroutine re-acquire a read lock it
// already holds without risking a deadlock against a pending writer. Pair
// this with the Recursive locking method.
func WithReentrantValueLocks[K comparable, V any]() Option[K, V] {
	return func(o *cacheOptions[K, V]) {
		o.newLock = func() valueLocker { return newReentrantRWMutex() }
	}
}

// WithLogger installs a Logger to observe eviction batches and maxused
// decay steps. The default is a no-op.
func WithLogger[K comparable, V any](l Logger) Option[K, V] {
	return func(o *cacheOptions[K, V]) {
		o.logger = l
	}
}
