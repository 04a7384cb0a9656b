package bootstrap

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/eleven-am/pose-bridge/internal/bridge"
	"github.com/eleven-am/pose-bridge/internal/detector"
	"github.com/eleven-am/pose-bridge/internal/health"
)

const version = "1.0.0"

func ProvideHealthHandler(redis *redis.Client, backend *detector.HTTPBackend, manager *bridge.Manager) *health.Handler {
	return health.NewHandler(redis, backend, manager, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
