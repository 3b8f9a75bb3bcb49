package static

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 1, 9, 15, 0, 123456789, time.UTC)

func clock() time.Time { return fixedNow }

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestFundamentals_LoadAndLookup(t *testing.T) {
	path := writeFile(t, `{
		"infy": {"pe": 24.5, "pb": null, "roe": 31.2, "qualityTags": ["high_roe"]}
	}`)
	p, err := LoadFundamentals(path, WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	got, err := p.Fundamentals(context.Background(), "Infy")
	require.NoError(t, err)
	assert.Equal(t, "INFY", got.Symbol)
	assert.Equal(t, models.SourceStatic, got.Source)
	assert.Equal(t, fixedNow.Truncate(time.Millisecond), got.AsOf)
	assert.Equal(t, null.FloatFrom(24.5), got.PE)
	assert.False(t, got.PB.Valid)
	assert.Equal(t, []string{"high_roe"}, got.QualityTags)

	// Mutating a result must not leak into the seed table.
	got.QualityTags[0] = "changed"
	again, err := p.Fundamentals(context.Background(), "INFY")
	require.NoError(t, err)
	assert.Equal(t, []string{"high_roe"}, again.QualityTags)

	_, err = p.Fundamentals(context.Background(), "XYZ")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFundamentals_MissingTagsBecomeEmptyList(t *testing.T) {
	p := NewFundamentalsProvider(map[string]models.FundamentalsSnapshot{"TCS": {}})
	got, err := p.Fundamentals(context.Background(), "tcs")
	require.NoError(t, err)
	assert.NotNil(t, got.QualityTags)
}

func TestTechnicals_LookupByTimeframe(t *testing.T) {
	path := writeFile(t, `{
		"INFY": {
			"6M": {"price": {"lastClose": 1500.1}, "momentum": {"rsi14": 44}, "patternSignals": ["golden_cross"]}
		}
	}`)
	p, err := LoadTechnicals(path, WithClock(clock))
	require.NoError(t, err)

	got, err := p.Technicals(context.Background(), "infy", domrepo.TF6M)
	require.NoError(t, err)
	assert.Equal(t, "INFY", got.Symbol)
	assert.Equal(t, "6M", got.Timeframe)
	assert.Equal(t, null.FloatFrom(1500.1), got.Price.LastClose)
	assert.Equal(t, null.FloatFrom(44), got.Momentum.RSI14)
	assert.False(t, got.Trend.SMA200.Valid)
	assert.Equal(t, []string{"golden_cross"}, got.PatternSignals)

	_, err = p.Technicals(context.Background(), "INFY", domrepo.TF1Y)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = p.Technicals(context.Background(), "TCS", domrepo.TF6M)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadFundamentals(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadTechnicals(writeFile(t, `[1,2,3]`))
	assert.Error(t, err)
}
