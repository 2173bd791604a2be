package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// TypedCache decodes whatever the levels hold into T. L1 keeps the Go value,
// L2 keeps JSON.
type TypedCache[T any] struct {
	cache CacheService
	sf    singleflight.Group
}

func NewTypedCache[T any](cache CacheService) *TypedCache[T] {
	return &TypedCache[T]{cache: cache}
}

func (tc *TypedCache[T]) Set(ctx context.Context, key string, value T, expiration time.Duration) error {
	return tc.cache.SetCache(ctx, key, value, expiration)
}

func (tc *TypedCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	rawValue, exists := tc.cache.GetCache(ctx, key)
	if !exists {
		return zero, false, nil
	}
	if typedValue, ok := rawValue.(T); ok {
		return typedValue, true, nil
	}

	var result T
	switch v := rawValue.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			return zero, true, fmt.Errorf("failed to unmarshal cache value: %w", err)
		}
	case []byte:
		if err := json.Unmarshal(v, &result); err != nil {
			return zero, true, fmt.Errorf("failed to unmarshal cache value: %w", err)
		}
	default:
		jsonData, err := json.Marshal(rawValue)
		if err != nil {
			return zero, true, fmt.Errorf("failed to marshal intermediate value: %w", err)
		}
		if err := json.Unmarshal(jsonData, &result); err != nil {
			return zero, true, fmt.Errorf("failed to unmarshal cache value: %w", err)
		}
	}
	return result, true, nil
}

// GetOrLoad serves from cache, otherwise runs load once per key across
// concurrent callers and caches the result.
func (tc *TypedCache[T]) GetOrLoad(ctx context.Context, key string, expiration time.Duration, load func(context.Context) (T, error)) (T, error) {
	if v, ok, err := tc.Get(ctx, key); ok && err == nil {
		return v, nil
	}
	res, err, _ := tc.sf.Do(key, func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		_ = tc.Set(ctx, key, v, expiration)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (tc *TypedCache[T]) Delete(ctx context.Context, key string) error {
	return tc.cache.DelCache(ctx, key)
}

func (tc *TypedCache[T]) EvictLocal(key string) {
	tc.cache.EvictLocal(key)
}
