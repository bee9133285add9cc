// Package store selects and opens the configured record store.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
	"crowdfund/internal/store/memstore"
	"crowdfund/internal/store/postgres"
	"crowdfund/internal/store/sqlite"
)

// Open returns the store named by cfg.StoreDriver, with its schema in place.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.Store, error) {
	switch cfg.StoreDriver {
	case infra.DriverMemory:
		logger.Warn().Msg("using in-memory store; state is lost on restart")
		return memstore.New(), nil
	case infra.DriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s := postgres.New(infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger()), pool.Close)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case infra.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
