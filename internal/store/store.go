// Package store is the typed persistence adapter. Every read is filtered by
// tenant; callers never see another tenant's rows.
package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
)

type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Ping proxies the pool health check for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) track(queryType, table string) {
	metrics.DBQueryTotal.WithLabelValues(queryType, table).Inc()
	metrics.DBConnectionsActive.Set(float64(s.db.Stat().AcquiredConns()))
}
