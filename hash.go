package cachedb

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Bucketizer lets a key type override the default shard-routing hash.
// Implement it when the reflection-based default is too slow or simply not
// applicable for a key shape; distribution quality requirements here are
// weaker than for the per-shard map itself, so a cheap implementation
// (e.g. a prefix of an already-computed ID) is fine.
type Bucketizer interface {
	// Bucket must return a value in [0, n). Returning anything else makes
	// Cache panic with an out-of-range index.
	Bucket(n int) int
}

// bucketFor routes key into one of n shards, preferring a Bucketizer
// implementation over the configured hash function.
func bucketFor[K comparable](key K, n int, hash func(K) uint64) int {
	if bz, ok := any(key).(Bucketizer); ok {
		return bz.Bucket(n)
	}
	return int(hash(key) % uint64(n))
}

// defaultHasher builds an xxHash64-based hash function for the common
// comparable key shapes: strings and fixed-width numeric/bool types. Keys
// of other shapes (structs, arrays, pointers, interfaces) must either
// implement Bucketizer or be paired with an explicit WithHasher option when
// constructing the Cache.
func defaultHasher[K comparable]() (func(K) uint64, error) {
	var zero K
	if _, ok := any(zero).(string); ok {
		return func(k K) uint64 {
			return xxhash.Sum64String(any(k).(string))
		}, nil
	}

	rt := reflect.TypeOf(zero)
	if rt == nil {
		return nil, fmt.Errorf("cachedb: cannot derive a default hash for key type %T; supply WithHasher", zero)
	}

	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return func(k K) uint64 {
			var buf [8]byte
			v := reflect.ValueOf(k)
			switch v.Kind() {
			case reflect.Bool:
				if v.Bool() {
					buf[0] = 1
				}
			case reflect.Float32, reflect.Float64:
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Float()))
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
				binary.LittleEndian.PutUint64(buf[:], v.Uint())
			default:
				binary.LittleEndian.PutUint64(buf[:], uint64(v.Int()))
			}
			return xxhash.Sum64(buf[:])
		}, nil
	default:
		return nil, fmt.Errorf("cachedb: no default hash for key type %s; implement Bucketizer or supply WithHasher", rt)
	}
}
