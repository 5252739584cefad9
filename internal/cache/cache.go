// Package cache provides the read-through score cache for the ranking
// pipeline. Values are CBOR-encoded, keyed by composite fingerprints, and
// expire after a TTL. Every backend failure degrades to a cache miss: the
// pipeline recomputes instead of failing the request.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Cache is a read-through cache of expensive intermediate ranking results.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get decodes the cached value for key into dest and reports whether
	// it was a hit. Expired entries, decode failures, and backend errors
	// are all misses.
	Get(ctx context.Context, key string, dest any) bool

	// Set stores value under key for ttl. Failures are observed but never
	// returned; a value that failed to cache is simply recomputed later.
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// Key composes the stable cache key for a subject and its variant/format
// discriminators, e.g. Key("post-123", "ranked", "v1"). Keys are opaque to
// consumers; distinct inputs produce distinct keys as long as the individual
// parts contain no ":" separator, which holds for the UUID identifiers and
// fixed variant names used here.
func Key(id, variant, format string) string {
	return fmt.Sprintf("%s:%s:%s", id, variant, format)
}

// GetOrLoad implements the read-through pattern: return the cached value for
// key, or invoke loader, cache its result, and return it. The second return
// reports whether the value was served from cache. Loader errors are returned
// as-is; cache failures on either side degrade silently.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, loader func() (T, error)) (T, bool, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	loaded, err := loader()
	if err != nil {
		var zero T
		return zero, false, err
	}

	c.Set(ctx, key, loaded, ttl)
	return loaded, false, nil
}

// encode marshals a value with the shared CBOR codec.
func encode(value any) ([]byte, error) {
	return cbor.Marshal(value)
}

// decode unmarshals CBOR data into dest.
func decode(data []byte, dest any) error {
	return cbor.Unmarshal(data, dest)
}
