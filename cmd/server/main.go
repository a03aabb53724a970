// Command server runs the commerce edge API: snapshot building, offline
// sync reconciliation, short links, redirects, and click analytics behind a
// single Gin HTTP server.
//
// Startup order:
//  1. Environment (.env in development) and config
//  2. Logging (zerolog, optional pretty console)
//  3. OpenTelemetry tracing (optional)
//  4. SQLite via GORM (+ OTel plugin when tracing is on) and migrations
//  5. Snapshot cache backend (Redis when configured, in-process otherwise)
//  6. Catalog fixture, background event writer, router
//  7. Graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-commerce-edge/internal/catalog"
	"github.com/tbourn/go-commerce-edge/internal/config"
	"github.com/tbourn/go-commerce-edge/internal/events"
	httpapi "github.com/tbourn/go-commerce-edge/internal/http"
	"github.com/tbourn/go-commerce-edge/internal/kv"
	"github.com/tbourn/go-commerce-edge/internal/observability"
	"github.com/tbourn/go-commerce-edge/internal/repo"
	"github.com/tbourn/go-commerce-edge/internal/sysutil"

	_ "github.com/tbourn/go-commerce-edge/docs"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	// .env is a development convenience; real deployments set the environment.
	if sysutil.IsTruthy(os.Getenv("LOAD_DOTENV")) {
		_ = godotenv.Load()
	}

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(c)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	// Snapshot cache backend: Redis when configured, in-process otherwise.
	var kvs kv.Store
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		kvs = kv.NewRedis(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("snapshot cache: redis")
	} else {
		kvs = kv.NewMemory()
		log.Info().Msg("snapshot cache: in-process memory")
	}

	// Canonical catalog data. The fixture file stands in for the upstream
	// commerce services during development and tests.
	var cat *catalog.FixtureStore
	if cfg.FixturePath != "" {
		cat, err = catalog.LoadFixture(cfg.FixturePath)
		if err != nil {
			return err
		}
		log.Info().Str("path", cfg.FixturePath).Msg("catalog fixture loaded")
	} else {
		cat = catalog.NewFixtureStore()
		log.Warn().Msg("no FIXTURE_PATH set; catalog starts empty")
	}

	// Background writer for clicks and snapshot audits.
	ev := events.NewWriter(db, cfg.Snapshots.EventBuffer)
	ev.Start()
	defer ev.Close()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, kvs, cat, ev, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
