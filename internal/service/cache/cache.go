// Package cache holds the small caches shared by the feed and the aggregator:
// an in-process TTL map for snapshots and a bytes cache (memory or Redis) for
// values that should survive a restart.
package cache

import "time"

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
