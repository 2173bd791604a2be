package cache

import (
	"context"
	"time"
)

// CacheService is the two-level cache contract: L1 in process, L2 in redis.
type CacheService interface {
	GetCache(ctx context.Context, key string) (interface{}, bool)
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelCache(ctx context.Context, key string) error
	// EvictLocal drops key from this process's L1 only.
	EvictLocal(key string)
}

// L2Store is what the redis service offers the cache.
type L2Store interface {
	GetCache(ctx context.Context, key string) (interface{}, bool)
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelCache(ctx context.Context, key string) error
}
