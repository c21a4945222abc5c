// Package syncstore implements the cache-first, remote-source-of-truth reconciliation
// primitive shared by the products, announcement, and shipping-settings collections.
//
// A Collection publishes a single in-memory value that is immediately available from
// the local cache and eventually consistent with the remote store. Reads degrade
// silently to stale data when the remote is unreachable; writes are optimistic and
// rolled back on remote failure, never silently lost.
package syncstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/butchers-select/api/internal/platform/localcache"
)

// State enumerates the collection lifecycle.
type State int

const (
	// StateIdle means Load has not been called yet.
	StateIdle State = iota
	// StateLoading means a remote fetch is in flight and no value has been published.
	StateLoading
	// StateReady means a value (cached or remote) has been published.
	StateReady
	// StateError means the remote fetch failed and no cached fallback existed.
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

var (
	// ErrNotReady indicates a mutation was attempted before any value was published.
	ErrNotReady = errors.New("syncstore: collection is not ready")
	errFetchNil = errors.New("syncstore: fetch function is required")
	errCacheNil = errors.New("syncstore: cache is required")
	errKeyEmpty = errors.New("syncstore: cache key is required")
)

// Fetcher retrieves the canonical remote value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Dispatcher persists an optimistically published value to the remote store.
type Dispatcher[T any] func(ctx context.Context, value T) error

// Deps wires a Collection's dependencies.
type Deps[T any] struct {
	Cache    localcache.Cache
	CacheKey string
	Fetch    Fetcher[T]
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Collection reconciles a locally cached snapshot with a remote source of truth.
type Collection[T any] struct {
	cache    localcache.Cache
	cacheKey string
	fetch    Fetcher[T]
	logger   func(ctx context.Context, event string, fields map[string]any)

	mu         sync.Mutex
	mutateMu   sync.Mutex
	state      State
	value      T
	hasValue   bool
	loadErr    error
	generation uint64
}

// New constructs a Collection validating required dependencies.
func New[T any](deps Deps[T]) (*Collection[T], error) {
	if deps.Cache == nil {
		return nil, errCacheNil
	}
	if strings.TrimSpace(deps.CacheKey) == "" {
		return nil, errKeyEmpty
	}
	if deps.Fetch == nil {
		return nil, errFetchNil
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Collection[T]{
		cache:    deps.Cache,
		cacheKey: strings.TrimSpace(deps.CacheKey),
		fetch:    deps.Fetch,
		logger:   logger,
	}, nil
}

// Load publishes the cached snapshot synchronously when one exists, then fetches the
// remote value and publishes it as the new truth, overwriting the cache. A remote
// failure is swallowed when a cached value was already published and surfaced only when
// no fallback exists. Responses from superseded loads are discarded so that a stale
// fetch never overwrites newer state.
func (c *Collection[T]) Load(ctx context.Context) (T, error) {
	c.mu.Lock()
	c.generation++
	generation := c.generation

	hadFallback := c.hasValue
	if cached, ok := c.readCache(ctx); ok {
		c.value = cached
		c.hasValue = true
		c.state = StateReady
		hadFallback = true
	} else if !c.hasValue {
		c.state = StateLoading
	}
	c.mu.Unlock()

	remote, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		// A newer load or mutation has been published meanwhile; last response wins.
		c.logger(ctx, "syncstore.stale_response_dropped", map[string]any{"key": c.cacheKey})
		return c.value, nil
	}

	if err != nil {
		if hadFallback {
			c.logger(ctx, "syncstore.refresh_failed", map[string]any{
				"key":   c.cacheKey,
				"error": err.Error(),
			})
			return c.value, nil
		}
		var zero T
		c.state = StateError
		c.loadErr = err
		return zero, err
	}

	c.value = remote
	c.hasValue = true
	c.state = StateReady
	c.loadErr = nil
	c.writeCache(ctx, remote)
	return remote, nil
}

// Mutate applies the operation to the latest published value, publishes and caches the
// result optimistically, then dispatches the remote write. On failure the previous
// published value and cache entry are restored byte-for-byte and the error returned.
// Mutations are serialised; each sees the value produced by the one before it.
func (c *Collection[T]) Mutate(ctx context.Context, apply func(current T) T, dispatch Dispatcher[T]) (T, error) {
	if apply == nil || dispatch == nil {
		var zero T
		return zero, errors.New("syncstore: apply and dispatch are required")
	}

	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	c.mu.Lock()
	if !c.hasValue {
		c.mu.Unlock()
		var zero T
		return zero, ErrNotReady
	}

	prevEncoded, encodeErr := json.Marshal(c.value)
	if encodeErr != nil {
		c.mu.Unlock()
		var zero T
		return zero, encodeErr
	}
	prevCached, hadCached := c.rawCache()

	next := apply(c.value)
	c.value = next
	c.generation++
	c.writeCache(ctx, next)
	c.mu.Unlock()

	if err := dispatch(ctx, next); err != nil {
		c.mu.Lock()
		var prev T
		if decodeErr := json.Unmarshal(prevEncoded, &prev); decodeErr == nil {
			c.value = prev
		}
		c.generation++
		if hadCached {
			if cacheErr := c.cache.Set(c.cacheKey, prevCached); cacheErr != nil {
				c.logger(ctx, "syncstore.rollback_cache_failed", map[string]any{
					"key":   c.cacheKey,
					"error": cacheErr.Error(),
				})
			}
		} else {
			_ = c.cache.Remove(c.cacheKey)
		}
		restored := c.value
		c.mu.Unlock()

		c.logger(ctx, "syncstore.mutation_rolled_back", map[string]any{
			"key":   c.cacheKey,
			"error": err.Error(),
		})
		return restored, err
	}

	return next, nil
}

// Snapshot returns the currently published value, when any.
func (c *Collection[T]) Snapshot() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasValue {
		var zero T
		return zero, false
	}
	return c.value, true
}

// State reports the collection lifecycle state.
func (c *Collection[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoadError returns the error recorded when the collection entered the error state.
func (c *Collection[T]) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// readCache decodes the cached snapshot; corrupt payloads are treated as absent.
func (c *Collection[T]) readCache(ctx context.Context) (T, bool) {
	var zero T
	raw, err := c.cache.Get(c.cacheKey)
	if err != nil {
		if !errors.Is(err, localcache.ErrNotFound) {
			c.logger(ctx, "syncstore.cache_read_failed", map[string]any{
				"key":   c.cacheKey,
				"error": err.Error(),
			})
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		c.logger(ctx, "syncstore.cache_corrupt", map[string]any{"key": c.cacheKey})
		return zero, false
	}
	return value, true
}

func (c *Collection[T]) rawCache() (string, bool) {
	raw, err := c.cache.Get(c.cacheKey)
	if err != nil {
		return "", false
	}
	return raw, true
}

func (c *Collection[T]) writeCache(ctx context.Context, value T) {
	encoded, err := json.Marshal(value)
	if err != nil {
		c.logger(ctx, "syncstore.cache_encode_failed", map[string]any{"key": c.cacheKey})
		return
	}
	if err := c.cache.Set(c.cacheKey, string(encoded)); err != nil {
		c.logger(ctx, "syncstore.cache_write_failed", map[string]any{
			"key":   c.cacheKey,
			"error": err.Error(),
		})
	}
}
