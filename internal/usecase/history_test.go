package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	points      []models.MarketHistoryPoint
	err         error
	gotSymbol   string
	gotInterval domrepo.Interval
	gotRange    domrepo.Range
}

func (h *fakeHistory) History(_ context.Context, symbol string, interval domrepo.Interval, rng domrepo.Range) ([]models.MarketHistoryPoint, error) {
	h.gotSymbol, h.gotInterval, h.gotRange = symbol, interval, rng
	return h.points, h.err
}

func TestHistory_CoercesParamsAndEchoesSymbol(t *testing.T) {
	p := &fakeHistory{points: []models.MarketHistoryPoint{{Date: testNow, Close: 101.5, Volume: 10}}}
	uc := NewHistoryUseCase(p, newRecordingMetrics(), nil)

	got, err := uc.History(context.Background(), " NSE:infy ", "5m", "10y")
	require.NoError(t, err)

	assert.Equal(t, "NSE:infy", p.gotSymbol)
	assert.Equal(t, domrepo.Interval1D, p.gotInterval)
	assert.Equal(t, domrepo.Range1Mo, p.gotRange)

	assert.Equal(t, "NSE:infy", got.Symbol)
	assert.Equal(t, "1d", got.Interval)
	assert.Equal(t, "1mo", got.Range)
	assert.Len(t, got.Data, 1)
}

func TestHistory_KeepsValidParams(t *testing.T) {
	p := &fakeHistory{points: []models.MarketHistoryPoint{{Date: testNow}}}
	uc := NewHistoryUseCase(p, nil, nil)

	got, err := uc.History(context.Background(), "AAPL", "1wk", "ytd")
	require.NoError(t, err)
	assert.Equal(t, "1wk", got.Interval)
	assert.Equal(t, "ytd", got.Range)
}

func TestHistory_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		points  []models.MarketHistoryPoint
		err     error
		wantErr error
		metric  string
	}{
		{name: "not found", err: models.ErrNotFound, wantErr: models.ErrNotFound},
		{name: "empty series", points: []models.MarketHistoryPoint{}, wantErr: models.ErrNotFound},
		{name: "timeout", err: fmt.Errorf("%w: deadline", models.ErrUpstreamTimeout), wantErr: models.ErrUpstreamTimeout, metric: "history_timeout"},
		{name: "upstream", err: fmt.Errorf("%w: 500", models.ErrUpstream), wantErr: models.ErrUpstream, metric: "history_upstream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newRecordingMetrics()
			uc := NewHistoryUseCase(&fakeHistory{points: tt.points, err: tt.err}, m, nil)

			_, err := uc.History(context.Background(), "AAPL", "", "")
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.metric != "" {
				assert.Equal(t, 1, m.errors[tt.metric])
			}
		})
	}
}

func TestHistory_BlankSymbol(t *testing.T) {
	p := &fakeHistory{}
	uc := NewHistoryUseCase(p, nil, nil)

	_, err := uc.History(context.Background(), "  ", "1d", "1mo")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Empty(t, p.gotSymbol)
}
