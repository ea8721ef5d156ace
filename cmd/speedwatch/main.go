// Package main is the entrypoint for the speedwatch training speed monitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/speedwatch/internal/api"
	"github.com/kiranshivaraju/speedwatch/internal/api/handler"
	mw "github.com/kiranshivaraju/speedwatch/internal/api/middleware"
	"github.com/kiranshivaraju/speedwatch/internal/cache"
	"github.com/kiranshivaraju/speedwatch/internal/config"
	"github.com/kiranshivaraju/speedwatch/internal/exchange"
	"github.com/kiranshivaraju/speedwatch/internal/loki"
	"github.com/kiranshivaraju/speedwatch/internal/monitor"
	"github.com/kiranshivaraju/speedwatch/internal/runai"
	"github.com/kiranshivaraju/speedwatch/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(level); err != nil {
		slog.Error("speedwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(level *slog.LevelVar) error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}
	slog.Info("config loaded",
		"user", cfg.Monitor.Username,
		"server", cfg.Monitor.ServerAddress,
		"unit", cfg.Monitor.LoggingUnit,
		"jobs", len(cfg.Monitor.Jobs),
		"pattern", cfg.Monitor.Pattern,
		"remote_aggregation", cfg.Monitor.RemoteAggregation,
		"exchange", cfg.Exchange.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Remote execution on the login node
	runner, err := runai.NewSSHRunner(runai.SSHConfig{
		User:           cfg.Monitor.Username,
		Address:        cfg.Monitor.ServerAddress,
		KeyPath:        cfg.SSH.KeyPath,
		KnownHostsPath: cfg.SSH.KnownHostsPath,
		Insecure:       cfg.SSH.Insecure,
		DialTimeout:    cfg.Monitor.CallTimeout,
	})
	if err != nil {
		return fmt.Errorf("create ssh runner: %w", err)
	}
	defer runner.Close()
	client := runai.NewCLIClient(runner, cfg.Monitor.RunaiBinary)

	// 3. Optional Loki log source
	var logs monitor.LogSource
	if cfg.Loki.BaseURL != "" {
		lokiClient := loki.NewHTTPClient(cfg.Loki.BaseURL, cfg.Loki.OrgID, cfg.Loki.Timeout)
		if err := lokiClient.Ready(ctx); err != nil {
			slog.Warn("loki not ready, continuing", "error", err)
		}
		logs = lokiClient
		slog.Info("reading job logs from loki", "url", cfg.Loki.BaseURL)
	}

	// 4. Redis is shared by the exchange and the API rate limiter
	var redisCache cache.Cache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rc.Close()

		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		redisCache = rc
		slog.Info("redis connected")
	}

	// 5. Snapshot exchange for cross-user aggregation
	var ex exchange.Exchange
	if cfg.Monitor.RemoteAggregation {
		ex, err = openExchange(ctx, cfg, redisCache)
		if err != nil {
			return fmt.Errorf("open exchange: %w", err)
		}
		defer ex.Close()
		slog.Info("cross-user aggregation enabled", "backend", cfg.Exchange.Backend)
	}

	// 6. Poll loop
	mon := monitor.New(monitor.Config{
		User:              cfg.Monitor.Username,
		Jobs:              cfg.Monitor.Jobs,
		Pattern:           cfg.Monitor.Pattern,
		DynamicJobList:    cfg.Monitor.DynamicJobList,
		Unit:              cfg.Monitor.LoggingUnit,
		OptimalUpperLimit: cfg.Monitor.OptimalUpperLimit,
		NodePrefix:        cfg.Monitor.NodePrefix,
		SpeedHistory:      cfg.Monitor.SpeedHistory,
		PollInterval:      cfg.Monitor.PollInterval,
		CallTimeout:       cfg.Monitor.CallTimeout,
		Parallelism:       cfg.Monitor.Parallelism,
	}, client, logs, ex)

	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		mon.Run(ctx)
	}()

	// 7. Build router with dependencies
	auth := mw.NewAuth(cfg.Server.APIKeyHashes)
	if !auth.Enabled() {
		slog.Warn("no API key hashes configured, refresh endpoint is open")
	}

	router := api.NewRouter(api.Dependencies{
		Auth:      auth,
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimit),

		HealthHandler:   handler.NewHealthHandler(mon, ex != nil),
		CycleHandler:    handler.NewCycleHandler(mon),
		ListJobsHandler: handler.NewListJobsHandler(mon),
		GetJobHandler:   handler.NewGetJobHandler(mon),
		ListNodes:       handler.NewListNodesHandler(mon),
		RefreshHandler:  handler.NewRefreshHandler(mon),
	})

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		stop()
		<-monDone
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	select {
	case <-monDone:
	case <-shutdownCtx.Done():
		slog.Warn("poll cycle did not stop before shutdown timeout")
	}

	slog.Info("speedwatch stopped gracefully")
	return nil
}

// openExchange builds the configured snapshot exchange backend.
func openExchange(ctx context.Context, cfg *config.Config, redisCache cache.Cache) (exchange.Exchange, error) {
	switch cfg.Exchange.Backend {
	case config.ExchangeRedis:
		return exchange.NewRedisExchange(redisCache, cfg.Exchange.MaxAge), nil

	case config.ExchangePostgres:
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		return &pooledExchange{
			Exchange: exchange.NewPostgresExchange(store.NewPostgresStore(pool), cfg.Exchange.MaxAge),
			close:    pool.Close,
		}, nil

	default:
		return exchange.NewFileExchange(cfg.Exchange.Dir, cfg.Exchange.MaxAge)
	}
}

// pooledExchange closes the database pool along with the exchange.
type pooledExchange struct {
	exchange.Exchange
	close func()
}

func (p *pooledExchange) Close() error {
	err := p.Exchange.Close()
	p.close()
	return err
}
