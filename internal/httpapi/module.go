package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"glowdesk/backend/internal/cache"
	"glowdesk/backend/internal/config"
	"glowdesk/backend/internal/service"
)

func Module() fx.Option {
	return fx.Module(
		"httpapi",
		fx.Provide(
			func(cfg config.Config, revoker cache.TokenRevoker) *AuthManager {
				return NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, revoker)
			},
			func(svc *service.Service, auth *AuthManager, logger *zap.Logger, cfg config.Config) *API {
				return New(svc, auth, logger, cfg.AllowedOrigin).WithMetrics(cfg.PrometheusEnabled)
			},
			newServer,
		),
		fx.Invoke(func(*http.Server) {}),
	)
}

func newServer(lc fx.Lifecycle, api *API, cfg config.Config, logger *zap.Logger) *http.Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			logger.Info("glowdesk backend listening", zap.String("addr", server.Addr))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("server stopping")
			return server.Shutdown(ctx)
		},
	})
	return server
}
