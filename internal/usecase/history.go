package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	domsvc "MarketSnap/internal/domain/service"
	applogger "MarketSnap/pkg/logger"
	pkgmetrics "MarketSnap/pkg/metrics"
)

// HistoryUseCase proxies OHLCV history. Nothing is persisted.
type HistoryUseCase struct {
	provider domsvc.HistoryProvider
	name     string
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewHistoryUseCase(provider domsvc.HistoryProvider, metrics domrepo.Metrics, l *applogger.Logger) *HistoryUseCase {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &HistoryUseCase{provider: provider, name: "yahoo", metrics: metrics, l: l}
}

// History coerces interval and range to supported values and fetches fresh
// bars. An empty series is reported as models.ErrNotFound. The response
// echoes the symbol as given (trimmed), not the provider ticker.
func (uc *HistoryUseCase) History(ctx context.Context, symbol, interval, rng string) (*models.MarketHistoryResponse, error) {
	sym := strings.TrimSpace(symbol)
	if sym == "" {
		return nil, models.ErrNotFound
	}
	iv := domrepo.NormalizeInterval(interval)
	r := domrepo.NormalizeRange(rng)

	start := time.Now()
	points, err := uc.provider.History(ctx, sym, iv, r)
	uc.metrics.RecordProviderLatency(uc.name, time.Since(start))

	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, models.ErrNotFound
	case errors.Is(err, models.ErrUpstreamTimeout):
		uc.metrics.RecordError("history_timeout")
		return nil, err
	case err != nil:
		uc.metrics.RecordError("history_upstream")
		uc.l.Error("history fetch failed",
			applogger.String("symbol", sym),
			applogger.String("interval", string(iv)),
			applogger.String("range", string(r)),
			applogger.Error(err))
		return nil, err
	}
	if len(points) == 0 {
		return nil, models.ErrNotFound
	}

	return &models.MarketHistoryResponse{
		Symbol:   sym,
		Interval: string(iv),
		Range:    string(r),
		Data:     points,
	}, nil
}
