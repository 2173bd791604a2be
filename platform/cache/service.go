package cache

import (
	"context"
	"time"

	"model_upload_backend/pkg/logging"
)

// l1Share is the fraction of the L2 ttl an entry lives in L1.
const l1Share = 0.3

type Service struct {
	l1 *L1CacheService
	l2 L2Store
}

func NewCacheService(l1 *L1CacheService, l2 L2Store) CacheService {
	return &Service{l1: l1, l2: l2}
}

func (cs *Service) GetCache(ctx context.Context, key string) (interface{}, bool) {
	if data, ok := cs.l1.Get(key); ok {
		return data, ok
	}
	if data, ok := cs.l2.GetCache(ctx, key); ok {
		return data, ok
	}
	return nil, false
}

func (cs *Service) SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := cs.l2.SetCache(ctx, key, value, expiration); err != nil {
		logging.Logger.Error("l2 fail SetCache", "key", key, "error", err)
		return err
	}
	cs.l1.Set(key, value, time.Duration(float64(expiration)*l1Share))
	return nil
}

// EvictLocal is for invalidations that another instance already applied to L2.
func (cs *Service) EvictLocal(key string) {
	cs.l1.Del(key)
}

func (cs *Service) DelCache(ctx context.Context, key string) error {
	cs.l1.Del(key)
	if err := cs.l2.DelCache(ctx, key); err != nil {
		logging.Logger.Error("l2 fail DelCache", "key", key, "error", err)
		return err
	}
	return nil
}
