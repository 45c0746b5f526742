package logging

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"glowdesk/backend/internal/config"
)

// Module decorates the root logger and must stay outside any fx.Module.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(func(lc fx.Lifecycle, cfg config.Config) (*os.File, error) {
			file, err := OpenLogFile(cfg.LogFile)
			if err != nil || file == nil {
				return file, err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return file.Close()
				},
			})
			return file, nil
		}),
		fx.Decorate(func(base *zap.Logger, cfg config.Config, file *os.File) *zap.Logger {
			return WithFile(base, file, cfg.Debug)
		}),
	)
}
