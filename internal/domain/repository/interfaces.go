package repository

import (
	"context"
	"time"

	"MarketSnap/internal/domain/models"
)

// FundamentalsRepository is an append-only log of fundamentals snapshots.
// GetLatest returns models.ErrNotFound when the symbol has no rows.
type FundamentalsRepository interface {
	GetLatest(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error)
	Append(ctx context.Context, s *models.FundamentalsSnapshot) error
}

// TechnicalsRepository is an append-only log of technical snapshots keyed by
// (symbol, timeframe).
type TechnicalsRepository interface {
	GetLatest(ctx context.Context, symbol string, tf Timeframe) (*models.TechnicalSnapshot, error)
	Append(ctx context.Context, s *models.TechnicalSnapshot) error
}

// PortfolioRepository reads positions owned by another system.
type PortfolioRepository interface {
	GetWeakest(ctx context.Context, userID string, limit int) ([]models.WeakStock, error)
}

// Snapshot read outcomes.
const (
	ReadHit      = "hit"
	ReadStale    = "stale"
	ReadMiss     = "miss"
	ReadNotFound = "not_found"
)

type Metrics interface {
	RecordSnapshotRead(kind, outcome string)
	RecordSnapshotWrite(kind string)
	RecordProviderLatency(provider string, d time.Duration)
	RecordError(kind string)
	RecordRefreshJob(jobType, result string)
}
