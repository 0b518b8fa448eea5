// Package cache provides the sharded, build-once map that backs loader caching.
//
// Entries are created at most once per key and never evicted: the set of keys
// (shader shapes) is expected to be small and bounded for the lifetime of the
// owning cache.
//
//	c := cache.NewSharded[string, int](cache.StringHasher)
//	v := c.GetOrCreate("key", func() int { return 42 })
//
// # Performance
//
// A hit takes only the shard read lock, so concurrent readers of built entries
// never contend with each other. Creation holds the shard write lock, which
// serializes builds of keys that hash to the same shard.
//
// # Thread Safety
//
// Sharded is safe for concurrent use and must not be copied after creation.
package cache
