package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quay/zlog"
)

// Connect initializes a pgxpool.Pool for the given connection string,
// tagging it with applicationName and registering its pool-level metrics,
// the way datastore/postgres's Connect does for claircore (adapted here to
// pgx/v5, which folded ConnectConfig into NewWithConfig).
func Connect(ctx context.Context, connString, applicationName string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing connection string: %w", err)
	}
	const appNameKey = "application_name"
	if _, ok := cfg.ConnConfig.RuntimeParams[appNameKey]; !ok {
		cfg.ConnConfig.RuntimeParams[appNameKey] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := prometheus.Register(newPoolCollector(pool, applicationName)); err != nil {
		zlog.Info(ctx).Msg("pool metrics already registered")
	}
	return pool, nil
}
