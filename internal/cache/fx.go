package cache

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/afftrack/clickpipe/internal/config"
)

// Provide selects the cache backend: Redis when an address is configured,
// the in-process TTL store otherwise.
func Provide(cfg config.Config, log *zap.Logger) Cache {
	if cfg.RedisAddr == "" {
		log.Info("cache: redis not configured, using in-memory store")
		return NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedis(client, log)
}

var Module = fx.Module("cache",
	fx.Provide(Provide),
)
