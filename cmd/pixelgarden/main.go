package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uhuru-arts/pixelgarden/internal/api"
	"github.com/uhuru-arts/pixelgarden/internal/circuitbreaker"
	"github.com/uhuru-arts/pixelgarden/internal/config"
	"github.com/uhuru-arts/pixelgarden/internal/editor"
	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/ledger"
	"github.com/uhuru-arts/pixelgarden/internal/metrics"
	"github.com/uhuru-arts/pixelgarden/internal/notify"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/render"
	"github.com/uhuru-arts/pixelgarden/internal/session"
	"github.com/uhuru-arts/pixelgarden/internal/storage"
	"github.com/uhuru-arts/pixelgarden/internal/verify"
)

func main() {
	cfg := config.Load()

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Run migrations
	if err := storage.RunMigrations(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete")

	store := storage.NewPostgresStore(pool, cfg.QueryTimeout)
	pricing := pixel.Pricing{Base: cfg.BasePrice, PerLevel: cfg.HeightSurcharge}

	// Build the in-memory grid and warm it from the store.
	g, err := grid.New(cfg.GridWidth, cfg.GridHeight)
	if err != nil {
		logger.Error("invalid grid geometry", "error", err)
		os.Exit(1)
	}
	sold, err := store.ListAllPixels(ctx)
	if err != nil {
		logger.Error("failed to load pixels", "error", err)
		os.Exit(1)
	}
	if err := g.LoadAll(sold); err != nil {
		logger.Error("failed to warm grid", "error", err)
		os.Exit(1)
	}
	logger.Info("grid loaded", "width", cfg.GridWidth, "height", cfg.GridHeight, "sold", len(sold))

	stats := grid.NewAggregator(g, pricing)

	// Ledger client behind a circuit breaker.
	breaker := circuitbreaker.New(5, 2, 30*time.Second)
	ledgerClient, err := ledger.NewClient(ledger.Config{
		RPCURL:  cfg.LedgerRPCURL,
		Timeout: cfg.VerifyTimeout,
	}, breaker)
	if err != nil {
		logger.Error("failed to create ledger client", "error", err)
		os.Exit(1)
	}

	verifier := verify.NewService(store, ledgerClient, g, verify.Config{
		BurnAddress: cfg.BurnAddress,
		Token:       cfg.TokenSymbol,
		Pricing:     pricing,
		GridWidth:   cfg.GridWidth,
		GridHeight:  cfg.GridHeight,
		MaxHeight:   cfg.MaxHeight,
	}, logger, func(outcome verify.Outcome, reason verify.Reason) {
		metrics.ObserveVerification(string(outcome), string(reason))
	})

	// Commit notifications over JSON-RPC.
	subscribers := notify.NewRegistry()
	if cfg.NotifyEndpoint != "" {
		subscribers.Register(&notify.Subscriber{
			Name:             "commit-endpoint",
			Endpoint:         cfg.NotifyEndpoint,
			SubscribedEvents: []string{notify.EventPixelCommitted},
		})
		logger.Info("commit notifications enabled", "endpoint", cfg.NotifyEndpoint)
	}
	rpcClient := notify.NewRPCClient(cfg.NotifyRetryMax, cfg.NotifyRetryBackoff, cfg.NotifyRPCTimeout)
	notifier := notify.NewNotifier(subscribers, rpcClient, logger)
	verifier.OnCommit(notifier.PixelCommitted)

	manager := session.NewManager(g, verifier, session.ManagerConfig{
		Editor: editor.Config{
			Pricing:       pricing,
			MaxHeight:     cfg.MaxHeight,
			MaxImageBytes: cfg.MaxImageBytes,
			CanvasSize:    cfg.CanvasSize,
		},
		Pricing:     pricing,
		BurnAddress: cfg.BurnAddress,
		TTL:         cfg.SessionTTL,
	})
	if cfg.SessionTTL > 0 {
		go manager.RunSweeper(ctx, cfg.SessionTTL/2)
	}

	renderer := render.New(g, render.Config{
		CellSize:       cfg.PixelSize,
		CameraDistance: cfg.CameraDistance,
		HeightUnit:     cfg.HeightUnit,
		BoxInset:       1,
		FOV:            0.9,
		Lighting: render.Lighting{
			AmbientIntensity:     cfg.AmbientLight,
			DirectionalIntensity: cfg.DirectionalLight,
		},
		Enable3D: cfg.Enable3D,
	})

	// Export pool and garden gauges.
	prometheus.MustRegister(metrics.NewPoolCollector(pool))
	prometheus.MustRegister(metrics.NewGardenCollector(func() (int, int, int64) {
		t := stats.Totals()
		return t.TotalPixels, t.PixelsSold, t.FundsRaised
	}))

	// Start HTTP server
	handler := api.NewServer(logger, api.Deps{
		Store:       store,
		Grid:        g,
		Stats:       stats,
		Verifier:    verifier,
		Sessions:    manager,
		Renderer:    renderer,
		Subscribers: subscribers,
		DB:          pool,
	}, api.ServerConfig{
		Pricing:       pricing,
		USDPerToken:   cfg.USDPerToken,
		TokenSymbol:   cfg.TokenSymbol,
		VerifyTimeout: cfg.VerifyTimeout,
		Client: api.ClientConfig{
			GridWidth:        cfg.GridWidth,
			GridHeight:       cfg.GridHeight,
			PixelSize:        cfg.PixelSize,
			BasePrice:        cfg.BasePrice,
			HeightSurcharge:  cfg.HeightSurcharge,
			MaxHeight:        cfg.MaxHeight,
			MaxMessageLen:    pixel.MaxMessageLen,
			MaxImageBytes:    cfg.MaxImageBytes,
			CanvasSize:       cfg.CanvasSize,
			BurnAddress:      cfg.BurnAddress,
			TokenSymbol:      cfg.TokenSymbol,
			USDPerToken:      cfg.USDPerToken,
			Enable3D:         cfg.Enable3D,
			CameraDistance:   cfg.CameraDistance,
			HeightUnit:       cfg.HeightUnit,
			AmbientLight:     cfg.AmbientLight,
			DirectionalLight: cfg.DirectionalLight,
			MinZoom:          render.MinZoom,
			MaxZoom:          render.MaxZoom,
			ZoomStep:         render.ZoomStep,
		},
	})
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down...")

	// Stop the session sweeper
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
