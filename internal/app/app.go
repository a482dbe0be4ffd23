// Package app wires configuration, storage, the comparison service and the
// HTTP server into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/store"
	"github.com/JonMunkholm/csvcompare/internal/web"
)

// App is a configured service ready to serve.
type App struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	service   *core.Service
	scheduler *core.Scheduler
	server    *web.Server
}

// New connects storage and builds the service and server. Runs are kept
// in memory when no database URL is configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	var runs core.RunStore
	if cfg.Database.UsesDatabase() {
		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		a.pool = pool

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}

		if cfg.Database.Migrate {
			if err := store.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		runs = store.New(pool)
	} else {
		slog.Warn("no database configured, runs are kept in memory")
		runs = core.NewMemoryStore()
	}

	a.service = core.NewService(runs, core.Options{
		MaxConcurrent: cfg.Compare.MaxConcurrent,
		MaxWait:       cfg.Compare.MaxWaitTime,
		MaxFileSize:   cfg.Compare.MaxFileSize,
		Timeout:       cfg.Compare.Timeout,
		Snapshot:      cfg.Compare.Snapshot,
	})

	if cfg.Retention.Enabled {
		sched, err := core.NewScheduler(runs, core.RetentionConfig{
			MaxAge:   cfg.Retention.MaxAge,
			Schedule: cfg.Retention.Schedule,
		}, slog.Default())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.scheduler = sched
	}

	a.server = web.NewServer(a.service, cfg)
	return a, nil
}

// Service returns the comparison service.
func (a *App) Service() *core.Service { return a.service }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Router() }

// Serve runs the server until ctx is cancelled, then drains active runs
// and shuts down within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		a.stopScheduler()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.stopScheduler()

	if status := a.service.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for comparisons to complete", "active", status.Active)
		if err := a.service.WaitForRuns(shutdownCtx); err != nil {
			slog.Warn("comparisons did not complete in time", "error", err)
		} else {
			slog.Info("all comparisons completed")
		}
	}

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (a *App) stopScheduler() {
	if a.scheduler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.scheduler.Stop(ctx)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// Run builds an App from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"database", cfg.Database.UsesDatabase(),
		"compare_max_concurrent", cfg.Compare.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"retention_enabled", cfg.Retention.Enabled,
	)

	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}
