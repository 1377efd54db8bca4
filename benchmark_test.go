package cachedb

import (
	"fmt"
	"testing"
)

func BenchmarkInsert(b *testing.B) {
	c, err := NewCache[string, string](runtimeShardCount, DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("bench_key_%d", i)
			_, err := c.Insert(key, func(string) (string, error) {
				return fmt.Sprintf("bench_value_%d", i), nil
			})
			if err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

func BenchmarkGet(b *testing.B) {
	c, err := NewCache[string, string](runtimeShardCount, DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}

	const n = 10000
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("bench_key_%d", i)
		if _, err := c.Insert(key, func(string) (string, error) {
			return fmt.Sprintf("bench_value_%d", i), nil
		}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("bench_key_%d", i%n)
			g, err := c.Get(Blocking{}, key)
			if err != nil {
				b.Fatal(err)
			}
			g.Release()
			i++
		}
	})
}

func BenchmarkGetMiss(b *testing.B) {
	c, err := NewCache[string, string](runtimeShardCount, DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("missing_key_%d", i)
			if _, err := c.Get(Blocking{}, key); err == nil {
				b.Fatal("expected a miss")
			}
			i++
		}
	})
}

func BenchmarkGetOrInsert(b *testing.B) {
	c, err := NewCache[string, int](runtimeShardCount, DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("key_%d", i%1000)
			g, err := c.GetOrInsert(Blocking{}, key, func(string) (int, error) {
				return i, nil
			})
			if err != nil {
				b.Fatal(err)
			}
			g.Release()
			i++
		}
	})
}

const runtimeShardCount = 32
