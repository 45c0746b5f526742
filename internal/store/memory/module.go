package memory

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"glowdesk/backend/internal/config"
	"glowdesk/backend/internal/store"
	"glowdesk/backend/internal/xid"
)

func Module() fx.Option {
	return fx.Module(
		"store",
		fx.Provide(newRepository),
	)
}

func newRepository(cfg config.Config, logger *zap.Logger) (store.Repository, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := Options{
		Clock:       store.SystemClock,
		IDs:         xid.UUID{},
		Location:    loc,
		StrictStock: cfg.StrictStock,
	}

	logger = logger.Named("store")
	if !cfg.SeedDemoData {
		logger.Info("repository: in-memory, empty", zap.Bool("strict_stock", cfg.StrictStock))
		return New(opts)
	}
	logger.Warn("repository: in-memory with demo data and the default admin credential", zap.Bool("strict_stock", cfg.StrictStock))
	return NewSeeded(opts)
}
