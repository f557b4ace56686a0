// Package driver opens the store backend named in the configuration. It lives
// apart from package store so that the backends can import store without a
// cycle.
package driver

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/memory"
	pgstore "github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/postgres"
	redisstore "github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/redis"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/sqlite"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/redis"
)

// Open connects to the configured backend. Connecting and any schema setup
// are bounded by cfg.Store.ConnectTimeout; failures are connection errors.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Store.ConnectTimeout)
		defer cancel()
	}
	logger := slog.Default().With("component", "store", "driver", cfg.Store.Driver)

	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		s = memory.New()
	case config.DriverSQLite:
		s, err = openSQLite(ctx, cfg)
	case config.DriverPostgres:
		s, err = openPostgres(ctx, cfg)
	case config.DriverRedis:
		s, err = openRedis(ctx, cfg)
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownDriver, "%q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("store opened")
	return s, nil
}

func openSQLite(ctx context.Context, cfg *config.Config) (store.Store, error) {
	s, err := sqlite.Open(ctx, cfg.Store.URI, cfg.SQLite.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (store.Store, error) {
	client, err := postgres.New(ctx, cfg.Store.URI, cfg.Postgres)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "connecting to postgres")
	}
	s := pgstore.New(client)
	if err := s.Migrate(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (store.Store, error) {
	client, err := pkgredis.NewClient(ctx, cfg.Store.URI, cfg.Redis)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "connecting to redis")
	}
	s, err := redisstore.New(ctx, client, cfg.Redis.KeyPrefix)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}
