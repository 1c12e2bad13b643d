// Package main provides the veil binary entry point that starts the HTTP
// server for limited-view secret sharing. It loads configuration from
// environment variables, validates it, wires the configured storage backend
// to the application service, starts the cleanup janitor, and serves until
// interrupted.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"

	"github.com/veil-sh/veil/internal/app"
	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/httpx"
	"github.com/veil-sh/veil/internal/janitor"
	"github.com/veil-sh/veil/internal/metrics"
	"github.com/veil-sh/veil/internal/passphrase"
	"github.com/veil-sh/veil/internal/policy"
	"github.com/veil-sh/veil/internal/store"
	"github.com/veil-sh/veil/internal/store/memory"
	"github.com/veil-sh/veil/internal/store/redis"
	"github.com/veil-sh/veil/internal/store/sqlite"
)

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

func ensureDataDir(dir string) {
	if st, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
				slog.Error("failed to create data directory", "dir", dir, "err", mkErr)
				os.Exit(3)
			}
		} else {
			slog.Error("stat data directory", "dir", dir, "err", err)
			os.Exit(3)
		}
	} else if !st.IsDir() {
		slog.Error("data path not directory", "dir", dir)
		os.Exit(3)
	}
}

// openRepository selects the configured backend. The returned closer is nil
// for backends without a connection to release.
func openRepository(cfg *config.Config) (store.Repository, func() error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), nil
	case "redis":
		repo, err := redis.New(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			slog.Error("connect redis", "addr", cfg.RedisAddr, "err", err)
			os.Exit(4)
		}
		return repo, repo.Close
	default:
		ensureDataDir(cfg.DataDir)
		db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
		if err != nil {
			slog.Error("open sqlite driver", "err", err)
			os.Exit(4)
		}
		repo, err := sqlite.New(db)
		if err != nil {
			slog.Error("init sqlite schema", "err", err)
			os.Exit(4)
		}
		return repo, db.Close
	}
}

func buildService(cfg *config.Config, repo store.Repository, reg *metrics.Registry) *app.Service {
	limits := policy.Limits{
		MaxSecretDays:     cfg.MaxSecretDays,
		MaxSecretViews:    cfg.MaxSecretViews,
		MaxFailedAttempts: cfg.MaxFailedAttempts,
	}
	engine := policy.New(passphrase.Verify, limits)
	return app.New(repo, app.SystemClock{}, engine, reg, cfg.BaseURL, limits, cfg.DefaultExpiryHours)
}

func buildHandler(cfg *config.Config, svc *app.Service, repo store.Repository, reg *metrics.Registry) http.Handler {
	readiness := func(ctx context.Context) error {
		// A cleanup probe against a zero-record window exercises the backend
		// connection without touching live data.
		_, err := repo.CleanupExpired(ctx, time.Unix(0, 0))
		return err
	}
	h := httpx.New(svc, cfg.MaxSecretBytes, readiness)
	h.Metrics = reg
	h.MetricsToken = cfg.MetricsToken
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run() error {
	cfg := loadConfig()
	repo, closeRepo := openRepository(cfg)
	if closeRepo != nil {
		defer func() {
			if err := closeRepo(); err != nil {
				slog.Error("close store", "err", err)
			}
		}()
	}
	reg := metrics.NewRegistry()
	svc := buildService(cfg, repo, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j := janitor.New(repo, janitor.Config{
		Interval: cfg.CleanupInterval,
		Registry: reg,
	})
	j.Start(ctx)
	defer j.Stop()

	srv := newServer(cfg, buildHandler(cfg, svc, repo, reg))
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "store", cfg.Store, "pid", os.Getpid())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
