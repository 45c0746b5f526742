package service

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"glowdesk/backend/internal/config"
	"glowdesk/backend/internal/store"
)

func Module() fx.Option {
	return fx.Module(
		"service",
		fx.Provide(func(repo store.Repository, logger *zap.Logger, cfg config.Config) (*Service, error) {
			loc, err := cfg.Location()
			if err != nil {
				return nil, err
			}
			return New(repo, logger, store.SystemClock, loc), nil
		}),
	)
}
