package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis adapts a redis client to the Cache interface. Errors are logged at
// debug and reported as misses; the pipeline never fails on cache trouble.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{client: client, log: log.Named("cache.redis")}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (r *Redis) Put(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Debug("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Debug("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	value, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.log.Debug("cache incr failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	if value == 1 && ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			r.log.Debug("cache expire failed", zap.String("key", key), zap.Error(err))
		}
	}
	return value, true
}
