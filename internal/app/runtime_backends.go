package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/config"
	"github.com/cam3ron2/org-dashboard/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type cachePinger interface {
	Ping(ctx context.Context) error
}

type cacheCloser interface {
	Close() error
}

// newRuntimeCache picks the configured cache backend, falling back to memory
// when Redis cannot be reached at startup.
func newRuntimeCache(cfg *config.Config, logger *zap.Logger) store.Cache {
	memory := store.NewMemoryCache()
	if cfg == nil || !strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), "redis") {
		return memory
	}

	redisCache, err := newRedisCacheFromConfig(cfg)
	if err != nil {
		logger.Warn("failed to initialize redis cache; falling back to in-memory cache", zap.Error(err))
		return memory
	}
	return redisCache
}

func newRedisCacheFromConfig(cfg *config.Config) (*store.RedisCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var redisClient redis.UniversalClient
	if strings.EqualFold(cfg.Cache.RedisMode, "sentinel") {
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.Cache.RedisMasterSet,
			SentinelAddrs: cfg.Cache.RedisSentinelAddrs,
			Password:      cfg.Cache.RedisPassword,
			DB:            cfg.Cache.RedisDB,
		})
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}

	cache := store.NewRedisCache(redisClient, store.RedisCacheConfig{Namespace: cfg.Cache.Namespace})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return cache, nil
}
