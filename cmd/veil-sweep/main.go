// Package main provides the veil-sweep binary, a one-shot cleanup of expired
// secrets. It reads the same configuration as the server, deletes every
// record past its deadline, prints the count, and exits. Intended for cron or
// systemd timers on deployments that prefer external scheduling over the
// in-process janitor.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/store"
	"github.com/veil-sh/veil/internal/store/memory"
	"github.com/veil-sh/veil/internal/store/redis"
	"github.com/veil-sh/veil/internal/store/sqlite"
)

func openRepository(cfg *config.Config) (store.Repository, func() error) {
	switch cfg.Store {
	case "memory":
		// Nothing persists to sweep, but keep the command usable in smoke tests.
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

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	repo, closeRepo := openRepository(cfg)
	if closeRepo != nil {
		defer func() {
			if cerr := closeRepo(); cerr != nil {
				slog.Error("close store", "err", cerr)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	count, err := repo.CleanupExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	slog.Info("sweep complete", "deleted", count, "ms", time.Since(start).Milliseconds())
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("sweep error", "err", err)
		os.Exit(1)
	}
}
