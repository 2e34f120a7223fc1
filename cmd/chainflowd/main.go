// chainflowd is the workflow engine daemon: it serves the HTTP API, the
// socket.io status feed and, when configured, archives terminal runs to
// PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vk/chainflow/internal/api"
	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/config"
	"github.com/vk/chainflow/internal/engine"
	"github.com/vk/chainflow/internal/events"
	"github.com/vk/chainflow/internal/events/socketfeed"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/metrics"
	"github.com/vk/chainflow/internal/store"
	"github.com/vk/chainflow/internal/store/postgres"
	"github.com/vk/chainflow/modules"
)

func main() {
	// Use a minimal logger until the configured one takes over.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfgPath := "chainflow.yaml"
	if len(args) > 0 {
		cfgPath = args[0]
	}

	cfg := config.New()
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		slog.Warn("No config file found, using defaults.", "path", cfgPath)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chains := buildChains(cfg)
	m := metrics.New()
	bus := events.NewBus()

	var archive store.Archiver = store.NopArchiver{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to archive database: %w", err)
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.CreateSchema(ctx); err != nil {
			return fmt.Errorf("preparing archive schema: %w", err)
		}
		archive = pg
		logger.Info("Run archive enabled.")
	}

	registry := executor.NewRegistry()
	registry.Install(modules.All(chains, htlc.NewStore(), archive)...)

	eng := engine.New(engine.Config{
		Registry: registry,
		Store:    store.NewMemoryStore(),
		Archive:  archive,
		Bus:      bus,
		Metrics:  m,
		Secrets:  cfg.Secrets,
		Logger:   logger,
	})

	feed := socketfeed.New(bus, logger)
	defer feed.Close()
	feedSrv := &http.Server{Addr: cfg.FeedListen, Handler: feedMux(feed)}
	go func() {
		logger.Info("🔌 Status feed listening.", "addr", cfg.FeedListen)
		if err := feedSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Status feed server failed.", "error", err)
		}
	}()

	app := api.NewServer(eng, cfg, m, logger).App()
	go func() {
		logger.Info("🚀 API listening.", "addr", cfg.Listen, "environment", cfg.Environment)
		if err := app.Listen(cfg.Listen, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			logger.Error("API server failed.", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down.")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("API shutdown incomplete.", "error", err)
	}
	if err := feedSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Feed shutdown incomplete.", "error", err)
	}
	return nil
}

// newLogger builds the configured slog logger.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// buildChains constructs one client per configured chain. The test
// environment gets deterministic simulated chains instead of RPC clients.
func buildChains(cfg *config.Config) chain.Set {
	set := make(chain.Set, len(cfg.Chains))
	for id, cc := range cfg.Chains {
		if cfg.Environment == "test" {
			set[id] = chain.NewSimChain(id)
			continue
		}
		set[id] = chain.NewRPCClient(id, cc.RPCURL, cc.APIKey)
	}
	return set
}

func feedMux(feed *socketfeed.Feed) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", feed.Handler())
	return mux
}
