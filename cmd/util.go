// Package cmd provides CLI commands for the notetakerd daemon.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/db"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config) logging.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.Level(cfg.LogLevel)
	logCfg.JSONFormat = cfg.LogJSON
	return logging.NewLogger(logCfg)
}

// connectDB opens the PostgreSQL pool using NTK_DB_* environment settings.
func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	dbCfg := db.ConfigFromEnv()
	pool, err := db.ConnectWithRetry(ctx, dbCfg, 5, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// newRedisClient opens the Redis connection for the deferred job queue.
func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// valueOrDefault returns the value, or the default if the value is empty.
func valueOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
