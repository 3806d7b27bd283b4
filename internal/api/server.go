package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/metrics"
	"github.com/uhuru-arts/pixelgarden/internal/notify"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/render"
	"github.com/uhuru-arts/pixelgarden/internal/session"
	"github.com/uhuru-arts/pixelgarden/internal/storage"
	"github.com/uhuru-arts/pixelgarden/internal/verify"
)

// ServerConfig carries the request-facing knobs and the public
// constants echoed at /v1/config.
type ServerConfig struct {
	Pricing       pixel.Pricing
	USDPerToken   float64
	TokenSymbol   string
	VerifyTimeout time.Duration
	Client        ClientConfig
}

// Deps are the wired application components the routes serve from.
type Deps struct {
	Store       storage.PixelStore
	Grid        *grid.Grid
	Stats       *grid.Aggregator
	Verifier    *verify.Service
	Sessions    *session.Manager
	Renderer    *render.Renderer
	Subscribers *notify.Registry
	DB          Pinger
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(logger *slog.Logger, deps Deps, cfg ServerConfig) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.Metrics)

	humaCfg := huma.DefaultConfig("Pixel Garden API", "1.0.0")
	humaCfg.Info.Description = "A community board of purchasable pixels."
	hapi := humachi.New(mux, humaCfg)

	pixelHandler := NewPixelHandler(deps.Store, cfg.Pricing, logger)
	statsHandler := NewStatsHandler(deps.Stats, cfg.USDPerToken)
	verifyHandler := NewVerifyHandler(deps.Verifier, cfg.Pricing, cfg.VerifyTimeout, logger)
	purchaseHandler := NewPurchaseHandler(deps.Sessions, cfg.Pricing, cfg.USDPerToken, cfg.TokenSymbol, cfg.VerifyTimeout, logger)
	renderHandler := NewRenderHandler(deps.Renderer, deps.Grid, cfg.Pricing, logger)
	configHandler := NewConfigHandler(cfg.Client)
	healthHandler := NewHealthHandler(deps.DB, logger)

	registerPixelRoutes(hapi, pixelHandler)
	registerStatsRoutes(hapi, statsHandler)
	registerVerifyRoutes(hapi, verifyHandler)
	registerPurchaseRoutes(hapi, purchaseHandler)
	registerRenderRoutes(hapi, renderHandler)
	registerConfigRoutes(hapi, configHandler)
	registerSubscriberRoutes(hapi, NewSubscriberHandler(deps.Subscribers))

	// Binary and probe endpoints stay on plain chi.
	RegisterBoardPNG(mux, renderHandler)
	mux.Get("/v1/livez", healthHandler.Livez)
	mux.Get("/v1/readyz", healthHandler.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
