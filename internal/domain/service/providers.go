package service

import (
	"context"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
)

// FundamentalsProvider is a non-persistent source of fundamentals snapshots.
// Returns models.ErrNotFound for unknown symbols.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error)
}

// TechnicalsProvider is a non-persistent source of technical snapshots.
// Returns models.ErrNotFound for unknown (symbol, timeframe) pairs.
type TechnicalsProvider interface {
	Technicals(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.TechnicalSnapshot, error)
}

// HistoryProvider fetches OHLCV series from an external market-data API.
// Unknown symbols yield models.ErrNotFound; transport and API failures wrap
// models.ErrUpstream or models.ErrUpstreamTimeout.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, interval domrepo.Interval, rng domrepo.Range) ([]models.MarketHistoryPoint, error)
}

// RefreshDispatcher hands refresh jobs to whatever executes them. Dispatch
// must not wait for the jobs to finish.
type RefreshDispatcher interface {
	Name() string
	Dispatch(ctx context.Context, jobs []models.RefreshJob) error
}
