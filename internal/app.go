package internal

import (
	"context"
	"time"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"glowdesk/backend/internal/apiclient"
	"glowdesk/backend/internal/cache"
	"glowdesk/backend/internal/config"
	"glowdesk/backend/internal/httpapi"
	"glowdesk/backend/internal/logging"
	"glowdesk/backend/internal/service"
	"glowdesk/backend/internal/store/memory"
)

func modules() fx.Option {
	return fx.Options(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		logging.Module(),
		cache.Module(),
		memory.Module(),
		service.Module(),
		httpapi.Module(),
	)
}

// Run serves the API until the process receives SIGINT or SIGTERM.
func Run() error {
	app := fx.New(modules())
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

// Healthcheck probes the locally running server through its public API.
func Healthcheck() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := apiclient.New("http://127.0.0.1"+cfg.Address(), 3*time.Second, zap.NewNop())
	return client.Health(ctx)
}
