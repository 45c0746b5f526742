package cache

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"glowdesk/backend/internal/config"
)

func Module() fx.Option {
	return fx.Module(
		"cache",
		fx.Provide(newTokenRevoker),
	)
}

func newTokenRevoker(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) TokenRevoker {
	logger = logger.Named("cache")
	if cfg.RedisAddr == "" {
		logger.Info("token revocation: memory")
		return NewMemoryTokenRevoker(time.Now)
	}

	redisRevoker := NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisRevoker.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using memory token revocation", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = redisRevoker.Close()
		return NewMemoryTokenRevoker(time.Now)
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return redisRevoker.Close()
		},
	})
	logger.Info("token revocation: redis", zap.String("addr", cfg.RedisAddr))
	return redisRevoker
}
