// Package cache provides pluggable byte-value caches used to memoize
// registry responses.
//
// Two layers are composed by the registry client: a bounded in-process
// [Memory] cache that keeps hot entries out of the filesystem during large
// traversals, and a persistent backend ([File] or [Redis]) that survives
// process restarts. [Null] disables caching entirely, which is useful in
// tests and for forced refreshes.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
//
// Implementations must tolerate concurrent readers; writers to the same key
// must be idempotent (values are immutable per key in practice, so last
// write wins is acceptable).
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value. A ttl of zero means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the cache.
	Close() error
}
