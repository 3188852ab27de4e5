package main

import (
	"context"
	"fmt"
	"os"

	"screenshot-service/internal/apikey"
	"screenshot-service/internal/env"
	"screenshot-service/internal/logging"
	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

// openFunc connects to the key repository and returns a cleanup function.
type openFunc func(ctx context.Context, databaseURL string, logger logr.Logger) (apikey.Repository, func(), error)

func openStore(ctx context.Context, databaseURL string, logger logr.Logger) (apikey.Repository, func(), error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to create database pool: %w", err)
	}
	db, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return db, pool.Close, nil
}

func main() {
	_ = godotenv.Load()

	logger, sync, err := logging.New(logging.Config{Level: env.OrDefault("GO_LOG", "info")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer sync()

	if err := newRootCmd(openStore, logger).ExecuteContext(context.Background()); err != nil {
		sync()
		os.Exit(1)
	}
}
