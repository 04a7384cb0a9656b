package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/eleven-am/pose-bridge/internal/history"
)

func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.StopHook(client.Close))
	return client
}

func ProvideFrameStore(client *redis.Client, cfg *Config) *history.Store {
	return history.NewStore(client, cfg.FrameTTL, cfg.MaxFrames)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRedisClient,
		ProvideFrameStore,
	),
)
