package cachedb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	c, err := NewCache[string, string](4, DefaultConfig())
	require.NoError(t, err)

	ran := false
	inserted, err := c.Insert("hello", func(key string) (string, error) {
		ran = true
		return "world", nil
	})
	require.NoError(t, err)
	require.True(t, inserted)
	require.True(t, ran)

	g, err := c.Get(Blocking{}, "hello")
	require.NoError(t, err)
	require.Equal(t, "world", g.Get())
	g.Release()
}

func TestInsertExistingKeyIsNoop(t *testing.T) {
	c, err := NewCache[string, int](4, DefaultConfig())
	require.NoError(t, err)

	_, err = c.Insert("k", func(string) (int, error) { return 1, nil })
	require.NoError(t, err)

	calls := 0
	inserted, err := c.Insert("k", func(string) (int, error) {
		calls++
		return 2, nil
	})
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, 0, calls)

	g, err := c.Get(Blocking{}, "k")
	require.NoError(t, err)
	require.Equal(t, 1, g.Get())
	g.Release()
}

func TestGetMissing(t *testing.T) {
	c, err := NewCache[string, int](4, DefaultConfig())
	require.NoError(t, err)

	_, err = c.Get(Blocking{}, "nope")
	require.ErrorIs(t, err, ErrNoEntry)
}

func TestInsertConstructorError(t *testing.T) {
	c, err := NewCache[string, int](4, DefaultConfig())
	require.NoError(t, err)

	sentinel := errors.New("boom")
	inserted, err := c.Insert("k", func(string) (int, error) {
		return 0, sentinel
	})
	require.False(t, inserted)
	require.ErrorIs(t, err, sentinel)
	require.False(t, c.ContainsKey("k"))
}

func TestGetOrInsertMut(t *testing.T) {
	c, err := NewCache[string, []int](4, DefaultConfig())
	require.NoError(t, err)

	g, err := c.GetOrInsertMut(Blocking{}, "list", func(string) ([]int, error) {
		return []int{1}, nil
	})
	require.NoError(t, err)
	*g.Value() = append(*g.Value(), 2)
	g.Release()

	g2, err := c.GetOrInsertMut(Blocking{}, "list", func(string) ([]int, error) {
		t.Fatal("constructor should not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, *g2.Value())
	g2.Release()
}

func TestGetOrInsertPropagatesConstructorError(t *testing.T) {
	c, err := NewCache[string, int](4, DefaultConfig())
	require.NoError(t, err)

	sentinel := errors.New("ctor failed")
	_, err = c.GetOrInsert(Blocking{}, "k", func(string) (int, error) {
		return 0, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.False(t, c.ContainsKey("k"))

	// A later GetOrInsert with a succeeding constructor must not observe
	// any leftover state from the failed attempt.
	g, err := c.GetOrInsert(Blocking{}, "k", func(string) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, g.Get())
	g.Release()
}

func TestContainsKey(t *testing.T) {
	c, err := NewCache[string, int](4, DefaultConfig())
	require.NoError(t, err)

	require.False(t, c.ContainsKey("k"))
	_, err = c.Insert("k", func(string) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.True(t, c.ContainsKey("k"))
}

func TestEvictWithLRUDisabledIsNoop(t *testing.T) {
	c, err := NewCache[string, int](1, DefaultConfig())
	require.NoError(t, err)

	c.DisableLRUEviction()
	defer c.EnableLRUEviction()

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		_, err := c.Insert(key, func(string) (int, error) { return i, nil })
		require.NoError(t, err)
	}

	require.Equal(t, 0, c.Evict(5))
	require.Equal(t, 10, c.Stats().Len)
}

func TestEvictReturnsEvictedCount(t *testing.T) {
	c, err := NewCache[string, int](1, DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		_, err := c.Insert(key, func(string) (int, error) { return i, nil })
		require.NoError(t, err)
		// guards aren't held across Insert, so every entry is immediately
		// idle and eligible for the LRU list
	}

	evicted := c.Evict(100)
	require.Equal(t, 5, evicted, "Evict returns the number evicted, not the requested slack")
	require.Equal(t, 0, c.Stats().Len)
}

func TestEnableLRUEvictionPanicsWithoutDisable(t *testing.T) {
	c, err := NewCache[string, int](1, DefaultConfig())
	require.NoError(t, err)

	require.Panics(t, func() {
		c.EnableLRUEviction()
	})
}

func TestDisableEnableNest(t *testing.T) {
	c, err := NewCache[string, int](1, DefaultConfig())
	require.NoError(t, err)

	c.DisableLRUEviction()
	c.DisableLRUEviction()
	c.EnableLRUEviction()

	// still disabled: one level remains
	_, err = c.Insert("k", func(string) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 0, c.Evict(10))

	c.EnableLRUEviction()
	require.Equal(t, 1, c.Evict(10))
}

func TestNewCacheRejectsNonPositiveShardCount(t *testing.T) {
	_, err := NewCache[string, int](0, DefaultConfig())
	require.Error(t, err)
}

func TestNewCacheRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCachePercent = 100
	_, err := NewCache[string, int](4, cfg)
	var invalid *ErrInvalidConfig
	require.ErrorAs(t, err, &invalid)
}

func TestWithHasherIsConsulted(t *testing.T) {
	calls := 0
	c, err := NewCache[string, int](4, DefaultConfig(), WithHasher[string, int](func(s string) uint64 {
		calls++
		return 0
	}))
	require.NoError(t, err)

	_, err = c.Insert("a", func(string) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Greater(t, calls, 0)
}

type fixedBucket int

func (f fixedBucket) Bucket(n int) int { return int(f) % n }

func TestBucketizerOverridesHash(t *testing.T) {
	c, err := NewCache[fixedBucket, int](4, DefaultConfig())
	require.NoError(t, err)

	_, err = c.Insert(fixedBucket(2), func(fixedBucket) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.True(t, c.ContainsKey(fixedBucket(2)))
	require.False(t, c.ContainsKey(fixedBucket(6))) // same shard as 2, but a distinct key
}

func TestStatsReflectsLen(t *testing.T) {
	c, err := NewCache[string, int](2, DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		key := string(rune('a' + i))
		_, err := c.Insert(key, func(string) (int, error) { return i, nil })
		require.NoError(t, err)
	}

	s := c.Stats()
	require.Equal(t, 4, s.Len)
	require.Len(t, s.Shards, 2)
	require.NotEmpty(t, s.String())
}
