// Package app wires config, storage and services into a runnable process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"servicehub/internal/automation"
	"servicehub/internal/config"
	"servicehub/internal/db"
	"servicehub/internal/engine"
	"servicehub/internal/logging"
	"servicehub/internal/migrate"
	"servicehub/internal/notify"
	"servicehub/internal/server"
	"servicehub/internal/snapshots"
)

// Runtime is an opened, migrated workspace with an engine built on top.
type Runtime struct {
	Config    *config.Config
	Workspace string
	DB        *sql.DB
	Dialect   db.Dialect
	Engine    engine.Engine
	Logger    *slog.Logger
}

// Open connects to the configured database, applies migrations and selects
// the snapshot backend.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	dbCfg := db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Workspace: workspace}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	dialect := dbCfg.Dialect()
	applied, err := migrate.Migrate(conn, dialect)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if applied > 0 {
		logger.Info("applied migrations", "count", applied, "driver", dialect)
	}
	e := engine.New(conn, dialect)
	store, err := snapshots.Open(cfg.Snapshots, workspace, snapshots.SQLStore{DB: conn, Dialect: dialect})
	if err != nil {
		conn.Close()
		return nil, err
	}
	e.Snapshots = store
	e.Logger = logger.With("component", "engine")
	return &Runtime{
		Config:    cfg,
		Workspace: workspace,
		DB:        conn,
		Dialect:   dialect,
		Engine:    e,
		Logger:    logger,
	}, nil
}

func (r *Runtime) Close() error {
	return r.DB.Close()
}

// Scheduler builds the automation scheduler from config.
func (r *Runtime) Scheduler() (*automation.Scheduler, error) {
	interval, err := r.Config.AutomationInterval()
	if err != nil {
		return nil, err
	}
	return automation.New(r.Engine, interval, r.Logger), nil
}

// Checks are the static entries reported by /health/detailed.
func (r *Runtime) Checks() map[string]string {
	backend := r.Config.Snapshots.Backend
	if backend == "" {
		backend = "sql"
	}
	automationState := "disabled"
	if r.Config.Automation.Enabled {
		automationState = "enabled"
	}
	webhooks := "disabled"
	if r.Config.Webhooks.Enabled {
		webhooks = "enabled"
	}
	return map[string]string{
		"database":   string(r.Dialect),
		"snapshots":  backend,
		"automation": automationState,
		"webhooks":   webhooks,
	}
}

// Handler builds the HTTP API. trigger may be nil.
func (r *Runtime) Handler(jwtSecret string, trigger server.CycleTrigger) (http.Handler, error) {
	window, err := r.Config.RateLimitWindow()
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Engine:       r.Engine,
		BasePath:     r.Config.Server.BasePath,
		Auth:         server.AuthConfig{JWTSecret: jwtSecret},
		Logger:       r.Logger.With("component", "http"),
		RateRequests: r.Config.RateLimit.Requests,
		RateWindow:   window,
		Automation:   trigger,
		Checks:       r.Checks(),
	})
}

// Serve runs the HTTP API, and the scheduler plus webhook notifier when
// automation is enabled, until ctx is cancelled.
func (r *Runtime) Serve(ctx context.Context, addr, jwtSecret string) error {
	if jwtSecret == "" {
		return errors.New("a JWT secret is required for bearer auth (SERVICEHUB_JWT_SECRET)")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		trigger server.CycleTrigger
	)
	if r.Config.Automation.Enabled {
		sched, err := r.Scheduler()
		if err != nil {
			return err
		}
		trigger = sched
		dispatcher := notify.New(r.Config.Webhooks, r.Config.WebhookTimeout(), r.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dispatcher == nil {
				// keep the report channel drained
				for range sched.Reports() {
				}
				return
			}
			dispatcher.Run(ctx, sched.Reports())
		}()
	}

	handler, err := r.Handler(jwtSecret, trigger)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		r.Logger.Info("serving api", "addr", addr, "base_path", r.Config.Server.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		wg.Wait()
		return err
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	err = srv.Shutdown(shutdownCtx)
	wg.Wait()
	r.Logger.Info("server stopped")
	return err
}
