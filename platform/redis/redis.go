package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"model_upload_backend/config"
	"model_upload_backend/pkg/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock is held by another owner")

type Service struct {
	Rdb *redis.Client
}

func InitRedis(cfg *config.Config) (*Service, error) {
	redisUrl := cfg.RedisURL
	if redisUrl == "" {
		return nil, fmt.Errorf("empty redis url")
	}
	opt, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, fmt.Errorf("could not parse Redis URL: %w", err)
	}
	if cfg.RedisPassword != "" && opt.Password == "" {
		opt.Password = cfg.RedisPassword
	}
	rdb := redis.NewClient(opt)

	testCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(testCtx).Err(); err != nil {
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}
	logging.Logger.Info("Connected to Redis")
	return NewService(rdb), nil
}

func NewService(rdb *redis.Client) *Service {
	return &Service{Rdb: rdb}
}

func (s *Service) SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.Rdb.Set(ctx, "cache:"+key, jsonData, expiration).Err()
}

// GetCache returns the raw JSON string; callers decode it.
func (s *Service) GetCache(ctx context.Context, key string) (interface{}, bool) {
	val, err := s.Rdb.Get(ctx, "cache:"+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Logger.Warn("l2 cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (s *Service) DelCache(ctx context.Context, key string) error {
	return s.Rdb.Del(ctx, "cache:"+key).Err()
}

func (s *Service) PushToQueue(ctx context.Context, queueName string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		logging.Logger.Error("fail PushToQueue", "queue", queueName, "error", err)
		return err
	}
	return s.Rdb.LPush(ctx, "queue:"+queueName, string(jsonValue)).Err()
}

// PopFromQueue returns redis.Nil when the queue is empty.
func (s *Service) PopFromQueue(ctx context.Context, queueName string) (string, error) {
	return s.Rdb.RPop(ctx, "queue:"+queueName).Result()
}

func (s *Service) QueueLen(ctx context.Context, queueName string) (int64, error) {
	return s.Rdb.LLen(ctx, "queue:"+queueName).Result()
}

// AcquireLock takes "lock:<name>" with SET NX and returns the owner token
// needed to release it.
func (s *Service) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.Rdb.SetNX(ctx, "lock:"+name, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ReleaseLock only deletes the lock if token still owns it.
func (s *Service) ReleaseLock(ctx context.Context, name, token string) error {
	return releaseScript.Run(ctx, s.Rdb, []string{"lock:" + name}, token).Err()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.Rdb.Ping(ctx).Err()
}

func (s *Service) Close() error {
	return s.Rdb.Close()
}
