package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves a value from the network.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Loader fronts one cache kind with request de-duplication: callers asking
// for the same key while a fetch is pending share that fetch's result.
// A failed fetch leaves neither a cached value nor an in-flight marker behind,
// so the next call retries.
type Loader[V any] struct {
	cache Typed[V]
	group singleflight.Group
}

// NewLoader creates a loader caching into kind of store.
func NewLoader[V any](store *Store, kind Kind) *Loader[V] {
	return &Loader[V]{cache: For[V](store, kind)}
}

// Load returns the cached value for key, or runs fetch once for all
// concurrent callers. The fetch is detached from any single caller's
// cancellation; a caller whose ctx ends stops waiting but does not abort the
// shared fetch.
func (l *Loader[V]) Load(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		// a fetch that completed between our miss and acquiring the slot
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := fetch(shared)
		if err != nil {
			l.cache.Delete(key)
			return nil, err
		}
		l.cache.Set(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// Invalidate drops the cached value and forgets any in-flight marker for key.
func (l *Loader[V]) Invalidate(key string) {
	l.cache.Delete(key)
	l.group.Forget(key)
}
