// Command pairauth-server serves the account and profile API over the pairAuth engine.
//
// Configuration comes from --config, CONFIG_PATH, ./local.yaml or the environment, see
// internal/config. Run:
//
//	JWT_ACCESS_SECRET=... JWT_REFRESH_SECRET=... go run ./cmd/pairauth-server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/internal/config"
	"github.com/MrEthical07/pairAuth/internal/logging"
	"github.com/MrEthical07/pairAuth/internal/rate"
	"github.com/MrEthical07/pairAuth/internal/server"
	"github.com/MrEthical07/pairAuth/internal/telemetry"
	promexport "github.com/MrEthical07/pairAuth/metrics/export/prometheus"
	"github.com/MrEthical07/pairAuth/store/memstore"
	"github.com/MrEthical07/pairAuth/store/mongostore"
	"github.com/MrEthical07/pairAuth/store/redisstore"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pairauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zl, err := logging.NewZap(!cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.NewSlog(zl, cfg.Log.Level).With(slog.String("service", "pairauth-server"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()
	logger.Info("store_ready", slog.String("driver", cfg.Store.Driver))

	engineCfg := cfg.EngineConfig()
	for _, warning := range engineCfg.Lint() {
		logger.Warn("config_lint",
			slog.String("code", warning.Code),
			slog.String("severity", warning.Severity.String()),
			slog.String("message", warning.Message),
		)
	}

	builder := pairAuth.New().
		WithConfig(engineCfg).
		WithUserProvider(backend.users).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(pairAuth.NewSlogSink(logger.With(slog.String("stream", "audit"))))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine_ready",
		slog.Bool("production", report.ProductionMode),
		slog.Duration("access_ttl", report.AccessTTL),
		slog.Duration("refresh_ttl", report.RefreshTTL),
		slog.Bool("cookie_secure", report.CookieSecure),
		slog.Bool("issuer_pinned", report.IssuerPinned),
		slog.Bool("audit", report.AuditEnabled),
		slog.Int("lint_high", report.LintHighFindings),
	)

	opts := server.Options{
		Engine:       engine,
		Logger:       logger,
		ClientOrigin: cfg.CORS.ClientOrigin,
		TrustProxy:   cfg.HTTP.TrustProxy,
		Timeout:      cfg.HTTP.RequestTimeout,
		Limiter:      rate.New(backend.counter, rate.Config{Limit: cfg.Rate.Max, Window: cfg.Rate.Window}),
		Ready:        backend.ready,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promexport.NewPrometheusExporter(engine).Handler()
	}
	if cfg.Metrics.OTel {
		meters, err := telemetry.Start(ctx, telemetry.Config{
			Endpoint:    cfg.Metrics.OTLPEndpoint,
			Insecure:    cfg.Metrics.OTLPInsecure,
			Interval:    cfg.Metrics.OTLPInterval,
			ServiceName: "pairauth-server",
		}, engine)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meters.Shutdown(flushCtx); err != nil {
				logger.Warn("otel_shutdown_failed", slog.String("error", err.Error()))
			}
		}()
		logger.Info("otel_metrics_ready", slog.String("endpoint", cfg.Metrics.OTLPEndpoint))
	}

	srv := server.New(server.Config{
		Addr:            cfg.HTTP.Addr(),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, server.NewRouter(opts), logger)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutdown_complete")
	return nil
}

// backend bundles the user store with the rate counter and readiness check that share its
// connection.
type backend struct {
	users   pairAuth.UserProvider
	counter rate.Counter
	ready   func(context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return &backend{
			users:   memstore.New(),
			counter: rate.NewMemoryCounter(nil),
			close:   func() {},
		}, nil

	case config.DriverRedis:
		opt, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		store := redisstore.New(rdb)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return &backend{
			users:   store,
			counter: rate.NewRedisCounter(rdb),
			ready:   store.Ping,
			close:   func() { _ = rdb.Close() },
		}, nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongostore.New(connectCtx, cfg.Store.MongoURI)
		if err != nil {
			return nil, err
		}
		return &backend{
			users:   store,
			counter: rate.NewMemoryCounter(nil),
			ready:   store.Ping,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = store.Close(closeCtx)
			},
		}, nil
	}

	return nil, errors.New("unknown store driver " + cfg.Store.Driver)
}
