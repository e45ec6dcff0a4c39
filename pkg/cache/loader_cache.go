// Package cache provides a bounded memo cache whose concurrent loads for the same key
// are coalesced into one call.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Key is a comparable key with a stable string form (e.g. uuid.UUID).
type Key interface {
	comparable
	fmt.Stringer
}

// LoaderCache memoizes load results per key. A burst of concurrent misses for one key runs
// load once; the other callers wait and share its result. Failed loads are not cached.
type LoaderCache[K Key, V any] struct {
	lru   *lru.Cache[K, V]
	group singleflight.Group
}

// NewLoaderCache creates a cache holding at most maxEntries values.
func NewLoaderCache[K Key, V any](maxEntries int) (*LoaderCache[K, V], error) {
	store, err := lru.New[K, V](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	return &LoaderCache[K, V]{lru: store}, nil
}

// Get returns the cached value for key, loading it on a miss. hit reports whether the
// value was already cached.
func (c *LoaderCache[K, V]) Get(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, bool, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		loaded, loadErr := load(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.lru.Add(key, loaded)

		return loaded, nil
	})
	if err != nil {
		var zero V

		return zero, false, err
	}

	return val.(V), false, nil
}

// Purge removes all entries.
func (c *LoaderCache[K, V]) Purge() {
	c.lru.Purge()
}
