package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/eleven-am/pose-bridge/internal/bridge"
	"github.com/eleven-am/pose-bridge/internal/detector"
	"github.com/eleven-am/pose-bridge/internal/history"
	"github.com/eleven-am/pose-bridge/internal/pose"
)

func ProvideHTTPBackend(cfg *Config) *detector.HTTPBackend {
	return detector.NewHTTPBackend(detector.HTTPConfig{
		URL:     cfg.DetectorURL,
		Timeout: cfg.DetectorTimeout,
	})
}

// ProvideBackend checks model assets locally first when MODEL_DIR is set.
func ProvideBackend(cfg *Config, httpBackend *detector.HTTPBackend) detector.Backend {
	if cfg.ModelDir == "" {
		return httpBackend
	}
	return detector.NewLocalAssets(cfg.ModelDir, httpBackend)
}

func ProvideAdapterFactory(backend detector.Backend, logger *slog.Logger) pose.AdapterFactory {
	return detector.NewFactory(backend, logger)
}

func ProvideChannelManager(lc fx.Lifecycle, factory pose.AdapterFactory, store *history.Store, cfg *Config, logger *slog.Logger) *bridge.Manager {
	m := bridge.NewManager(factory, store, logger,
		bridge.WithIdleTTL(cfg.ChannelIdleTTL),
		bridge.WithMaxImagePixels(cfg.MaxImagePixels),
	)
	lc.Append(fx.StopHook(m.Close))
	return m
}

func ProvideBridgeHandler(m *bridge.Manager, store *history.Store, cfg *Config, logger *slog.Logger) *bridge.Handler {
	limits := bridge.DefaultRateLimiterConfig()
	limits.RequestsPerSecond = cfg.RateLimitRPS
	limits.Burst = cfg.RateLimitBurst
	return bridge.NewHandler(m, store, limits, logger)
}

func RegisterBridgeRoutes(e *echo.Echo, h *bridge.Handler) {
	h.RegisterRoutes(e.Group("/v1"))
}

var PoseModule = fx.Options(
	fx.Provide(
		ProvideHTTPBackend,
		ProvideBackend,
		ProvideAdapterFactory,
		ProvideChannelManager,
		ProvideBridgeHandler,
	),
	fx.Invoke(RegisterBridgeRoutes),
)
