package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	applogger "MarketSnap/pkg/logger"
	"MarketSnap/pkg/util"
)

// AnalysisUseCase joins portfolio positions with their market snapshots.
type AnalysisUseCase struct {
	positions    domrepo.PortfolioRepository
	snapshots    *SnapshotUseCase
	defaultLimit int
	l            *applogger.Logger
}

func NewAnalysisUseCase(positions domrepo.PortfolioRepository, snapshots *SnapshotUseCase, defaultLimit int, l *applogger.Logger) *AnalysisUseCase {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &AnalysisUseCase{positions: positions, snapshots: snapshots, defaultLimit: defaultLimit, l: l}
}

// Weakest returns the user's lowest-P&L positions with combined market data
// at the default timeframe. limit <= 0 uses the configured default.
//
// Positions are enriched concurrently. A failed part is left nil and a
// stable code recorded under Errors; only the positions query can fail the call.
func (uc *AnalysisUseCase) Weakest(ctx context.Context, userID string, limit int) ([]models.WeakStockReport, error) {
	if limit <= 0 {
		limit = uc.defaultLimit
	}

	weak, err := uc.positions.GetWeakest(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("weakest positions: %w", err)
	}

	out := make([]models.WeakStockReport, len(weak))
	tf := uc.snapshots.Timeframes().Default()

	type item struct {
		idx   int
		rep   models.WeakStockReport
		cause map[string]error
	}
	ch := make(chan item, len(weak))
	var wg sync.WaitGroup

	for i, w := range weak {
		wg.Add(1)
		go func(i int, w models.WeakStock) {
			defer wg.Done()
			sym := util.NormalizeSymbol(w.Symbol)
			snap, fundErr, techErr := uc.snapshots.combined(ctx, sym, tf)

			rep := models.WeakStockReport{
				WeakStock:  w,
				MarketData: *snap,
				Errors:     map[string]string{},
			}
			cause := map[string]error{}
			if fundErr != nil {
				rep.Errors["fundamentals"] = partErrorCode(fundErr)
				cause["fundamentals"] = fundErr
			}
			if techErr != nil {
				rep.Errors["technical"] = partErrorCode(techErr)
				cause["technical"] = techErr
			}
			ch <- item{i, rep, cause}
		}(i, w)
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if len(it.rep.Errors) == 0 {
			it.rep.Errors = nil
		} else {
			for part, err := range it.cause {
				uc.l.Warn("weak position enrichment partially failed",
					applogger.String("user_id", userID),
					applogger.String("symbol", it.rep.Symbol),
					applogger.String("part", part),
					applogger.Error(err))
			}
		}
		out[it.idx] = it.rep
	}
	return out, nil
}

// Part error codes reported to clients. Details stay in the logs.
const (
	PartErrUnavailable = "unavailable"
	PartErrTimeout     = "timeout"
)

func partErrorCode(err error) string {
	if errors.Is(err, models.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return PartErrTimeout
	}
	return PartErrUnavailable
}
