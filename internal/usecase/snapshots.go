package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	domsvc "MarketSnap/internal/domain/service"
	pkgcache "MarketSnap/pkg/cache"
	applogger "MarketSnap/pkg/logger"
	pkgmetrics "MarketSnap/pkg/metrics"
	"MarketSnap/pkg/util"
)

// SnapshotPolicy is the market section of the config as the read path needs it.
type SnapshotPolicy struct {
	Timeframes        domrepo.TimeframePolicy
	FundamentalsFresh Staleness
	TechnicalsFresh   Staleness
	AppendLockTTL     time.Duration
}

// DefaultSnapshotPolicy is 3 months for fundamentals and 7 days for technicals.
func DefaultSnapshotPolicy() SnapshotPolicy {
	return SnapshotPolicy{
		Timeframes:        domrepo.DefaultTimeframePolicy(),
		FundamentalsFresh: Staleness{Months: 3},
		TechnicalsFresh:   Staleness{Days: 7},
		AppendLockTTL:     10 * time.Second,
	}
}

// SnapshotOption configures SnapshotUseCase.
type SnapshotOption func(*SnapshotUseCase)

// WithClock replaces time.Now for staleness checks.
func WithClock(now func() time.Time) SnapshotOption {
	return func(uc *SnapshotUseCase) { uc.rt.now = now }
}

// WithAppendGuard enables the per-key append lock.
func WithAppendGuard(c pkgcache.Service) SnapshotOption {
	return func(uc *SnapshotUseCase) { uc.rt.guard.cache = c }
}

func WithSnapshotLogger(l *applogger.Logger) SnapshotOption {
	return func(uc *SnapshotUseCase) {
		if l != nil {
			uc.rt.l = l
		}
	}
}

func WithSnapshotMetrics(m domrepo.Metrics) SnapshotOption {
	return func(uc *SnapshotUseCase) {
		if m != nil {
			uc.rt.metrics = m
		}
	}
}

// SnapshotUseCase serves fundamentals and technicals through the persisted
// log, falling back to static providers on miss or staleness.
type SnapshotUseCase struct {
	fundRepo domrepo.FundamentalsRepository
	techRepo domrepo.TechnicalsRepository
	fundSrc  domsvc.FundamentalsProvider
	techSrc  domsvc.TechnicalsProvider
	policy   SnapshotPolicy
	rt       readThrough
}

func NewSnapshotUseCase(
	fundRepo domrepo.FundamentalsRepository,
	techRepo domrepo.TechnicalsRepository,
	fundSrc domsvc.FundamentalsProvider,
	techSrc domsvc.TechnicalsProvider,
	policy SnapshotPolicy,
	opts ...SnapshotOption,
) *SnapshotUseCase {
	uc := &SnapshotUseCase{
		fundRepo: fundRepo,
		techRepo: techRepo,
		fundSrc:  fundSrc,
		techSrc:  techSrc,
		policy:   policy,
		rt: readThrough{
			metrics: pkgmetrics.Nop{},
			now:     time.Now,
			l:       applogger.NewNop(),
		},
	}
	for _, opt := range opts {
		opt(uc)
	}
	uc.rt.guard.ttl = policy.AppendLockTTL
	uc.rt.guard.l = uc.rt.l
	return uc
}

// Timeframes exposes the configured timeframe policy.
func (uc *SnapshotUseCase) Timeframes() domrepo.TimeframePolicy { return uc.policy.Timeframes }

// Fundamentals returns the latest fundamentals for symbol or models.ErrNotFound.
func (uc *SnapshotUseCase) Fundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	sym := util.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, models.ErrNotFound
	}

	return readSnapshot(ctx, uc.rt, uc.policy.FundamentalsFresh, snapshotSource[models.FundamentalsSnapshot]{
		kind:   kindFundamentals,
		key:    sym,
		latest: func(ctx context.Context) (*models.FundamentalsSnapshot, error) { return uc.fundRepo.GetLatest(ctx, sym) },
		asOf:   func(s *models.FundamentalsSnapshot) time.Time { return s.AsOf },
		fallback: func(ctx context.Context) (*models.FundamentalsSnapshot, error) {
			return uc.fundSrc.Fundamentals(ctx, sym)
		},
		append: uc.fundRepo.Append,
	})
}

// Technicals returns the latest technicals for (symbol, timeframe). A
// timeframe outside the allowed set is replaced by the default first.
func (uc *SnapshotUseCase) Technicals(ctx context.Context, symbol, timeframe string) (*models.TechnicalSnapshot, error) {
	return uc.technicals(ctx, util.NormalizeSymbol(symbol), uc.policy.Timeframes.Normalize(timeframe))
}

func (uc *SnapshotUseCase) technicals(ctx context.Context, sym string, tf domrepo.Timeframe) (*models.TechnicalSnapshot, error) {
	if sym == "" {
		return nil, models.ErrNotFound
	}

	return readSnapshot(ctx, uc.rt, uc.policy.TechnicalsFresh, snapshotSource[models.TechnicalSnapshot]{
		kind:   kindTechnicals,
		key:    sym + ":" + string(tf),
		latest: func(ctx context.Context) (*models.TechnicalSnapshot, error) { return uc.techRepo.GetLatest(ctx, sym, tf) },
		asOf:   func(s *models.TechnicalSnapshot) time.Time { return s.AsOf },
		fallback: func(ctx context.Context) (*models.TechnicalSnapshot, error) {
			return uc.techSrc.Technicals(ctx, sym, tf)
		},
		append: uc.techRepo.Append,
	})
}

// Combined fetches both snapshot kinds concurrently. A kind with no data is
// left nil; any other failure fails the whole call.
func (uc *SnapshotUseCase) Combined(ctx context.Context, symbol, timeframe string) (*models.CombinedMarketSnapshot, error) {
	res, fundErr, techErr := uc.combined(ctx, util.NormalizeSymbol(symbol), uc.policy.Timeframes.Normalize(timeframe))
	if fundErr != nil {
		return nil, fundErr
	}
	if techErr != nil {
		return nil, techErr
	}
	return res, nil
}

// combined runs both reads in parallel. NotFound is folded into a nil part;
// other errors are returned per part.
func (uc *SnapshotUseCase) combined(ctx context.Context, sym string, tf domrepo.Timeframe) (res *models.CombinedMarketSnapshot, fundErr, techErr error) {
	res = &models.CombinedMarketSnapshot{Symbol: sym}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Fundamentals, fundErr = uc.Fundamentals(ctx, sym)
	}()
	go func() {
		defer wg.Done()
		res.Technical, techErr = uc.technicals(ctx, sym, tf)
	}()
	wg.Wait()

	if errors.Is(fundErr, models.ErrNotFound) {
		fundErr = nil
	}
	if errors.Is(techErr, models.ErrNotFound) {
		techErr = nil
	}
	return res, fundErr, techErr
}
