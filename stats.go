package cachedb

import "fmt"

// Stats is a point-in-time snapshot of the whole cache's adaptive state,
// useful for tuning the six Configure* knobs. It is not consulted on any
// hot path; computing it briefly takes every shard's map lock, one shard
// at a time.
type Stats struct {
	Len         int
	Shards      []ShardStats
	MaxShardLen int
	MinShardLen int
	LoadBalance float64 // variance of per-shard entry counts
}

// Stats returns a snapshot of every shard's entry count, cold count,
// decaying maxused peak, and current cold-entry target, plus a few
// cache-wide derived figures useful for judging shard-key distribution.
func (c *Cache[K, V]) Stats() Stats {
	shardStats := make([]ShardStats, len(c.shards))
	var total int
	var maxLen, minLen int
	for i, sh := range c.shards {
		shardStats[i] = sh.stats()
		total += shardStats[i].Len
		if i == 0 || shardStats[i].Len > maxLen {
			maxLen = shardStats[i].Len
		}
		if i == 0 || shardStats[i].Len < minLen {
			minLen = shardStats[i].Len
		}
	}

	avg := float64(total) / float64(len(c.shards))
	var variance float64
	for _, s := range shardStats {
		diff := float64(s.Len) - avg
		variance += diff * diff
	}
	variance /= float64(len(shardStats))

	return Stats{
		Len:         total,
		Shards:      shardStats,
		MaxShardLen: maxLen,
		MinShardLen: minLen,
		LoadBalance: variance,
	}
}

// String renders a one-line human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("entries=%d shards=%d max_shard=%d min_shard=%d load_balance=%.2f",
		s.Len, len(s.Shards), s.MaxShardLen, s.MinShardLen, s.LoadBalance)
}
