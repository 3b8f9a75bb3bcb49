package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	pkgcache "MarketSnap/pkg/cache"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotFixture struct {
	fundRepo *fakeFundRepo
	techRepo *fakeTechRepo
	fundSrc  *fakeFundSrc
	techSrc  *fakeTechSrc
	metrics  *recordingMetrics
}

func newSnapshotFixture() *snapshotFixture {
	return &snapshotFixture{
		fundRepo: newFakeFundRepo(),
		techRepo: newFakeTechRepo(),
		fundSrc: &fakeFundSrc{data: map[string]models.FundamentalsSnapshot{
			"AAPL": {PE: null.FloatFrom(28.5), QualityTags: []string{"wide_moat"}},
		}},
		techSrc: &fakeTechSrc{data: map[string]map[domrepo.Timeframe]models.TechnicalSnapshot{
			"AAPL": {domrepo.TF6M: {Momentum: models.MomentumBlock{RSI14: null.FloatFrom(55)}}},
		}},
		metrics: newRecordingMetrics(),
	}
}

func (f *snapshotFixture) useCase(opts ...SnapshotOption) *SnapshotUseCase {
	opts = append([]SnapshotOption{WithClock(fixedClock), WithSnapshotMetrics(f.metrics)}, opts...)
	return NewSnapshotUseCase(f.fundRepo, f.techRepo, f.fundSrc, f.techSrc, DefaultSnapshotPolicy(), opts...)
}

func TestFundamentals_SeedOnlyAppendsOnce(t *testing.T) {
	f := newSnapshotFixture()
	uc := f.useCase()

	first, err := uc.Fundamentals(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, models.SourceStatic, first.Source)
	assert.Equal(t, 28.5, first.PE.Float64)
	assert.Equal(t, 1, f.fundRepo.appendCount())

	second, err := uc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.fundRepo.appendCount())
	assert.Equal(t, 1, f.fundSrc.callCount())
	assert.Equal(t, 1, f.metrics.reads["fundamentals/miss"])
	assert.Equal(t, 1, f.metrics.reads["fundamentals/hit"])
}

func TestFundamentals_FreshRowSkipsFallback(t *testing.T) {
	f := newSnapshotFixture()
	row := models.FundamentalsSnapshot{
		Symbol: "MSFT",
		AsOf:   testNow.AddDate(0, -2, 0),
		Source: models.SourceAlphaVantage,
		PE:     null.FloatFrom(31),
	}
	f.fundRepo.put(row)
	uc := f.useCase()

	for i := 0; i < 2; i++ {
		got, err := uc.Fundamentals(context.Background(), "msft")
		require.NoError(t, err)
		assert.Equal(t, row, *got)
	}
	assert.Zero(t, f.fundSrc.callCount())
	assert.Zero(t, f.fundRepo.appendCount())
}

func TestFundamentals_StaleRowIsReplacedFromFallback(t *testing.T) {
	f := newSnapshotFixture()
	f.fundRepo.put(models.FundamentalsSnapshot{Symbol: "AAPL", AsOf: testNow.AddDate(0, -4, 0), PE: null.FloatFrom(10)})
	uc := f.useCase()

	got, err := uc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 28.5, got.PE.Float64)
	assert.Equal(t, testNow, got.AsOf)
	assert.Equal(t, 1, f.fundRepo.appendCount())
	assert.Equal(t, 1, f.metrics.reads["fundamentals/stale"])
}

func TestFundamentals_StaleRowWithoutFallbackIsNotFound(t *testing.T) {
	f := newSnapshotFixture()
	f.fundRepo.put(models.FundamentalsSnapshot{Symbol: "TCS", AsOf: testNow.AddDate(-1, 0, 0), PE: null.FloatFrom(25)})
	uc := f.useCase()

	got, err := uc.Fundamentals(context.Background(), "TCS")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Nil(t, got)
	assert.Zero(t, f.fundRepo.appendCount())
	assert.Equal(t, 1, f.metrics.reads["fundamentals/not_found"])
}

func TestTechnicals_StaleRowWithoutFallbackIsNotFound(t *testing.T) {
	f := newSnapshotFixture()
	f.techRepo.put(models.TechnicalSnapshot{Symbol: "MSFT", Timeframe: "6M", AsOf: testNow.AddDate(0, 0, -30)})
	uc := f.useCase()

	got, err := uc.Technicals(context.Background(), "MSFT", "6M")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Nil(t, got)
	assert.Zero(t, f.techRepo.appendCount())
}

func TestFundamentals_NotFoundInEitherTier(t *testing.T) {
	f := newSnapshotFixture()
	uc := f.useCase()

	_, err := uc.Fundamentals(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 1, f.metrics.reads["fundamentals/not_found"])

	_, err = uc.Fundamentals(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFundamentals_RepositoryErrorPropagates(t *testing.T) {
	f := newSnapshotFixture()
	boom := errors.New("db down")
	f.fundRepo.getErr = boom
	uc := f.useCase()

	_, err := uc.Fundamentals(context.Background(), "AAPL")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.fundSrc.callCount())
	assert.Equal(t, 1, f.metrics.errors["fundamentals_read"])
}

func TestFundamentals_AppendErrorPropagates(t *testing.T) {
	f := newSnapshotFixture()
	boom := errors.New("insert failed")
	f.fundRepo.addErr = boom
	uc := f.useCase()

	_, err := uc.Fundamentals(context.Background(), "AAPL")
	assert.ErrorIs(t, err, boom)
}

func TestStaleness_Cutoff(t *testing.T) {
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Staleness{Months: 3}.Cutoff(now))
	assert.Equal(t, time.Date(2024, 5, 24, 0, 0, 0, 0, time.UTC), Staleness{Days: 7}.Cutoff(now))
}

func TestTechnicals_InvalidTimeframeFallsBackToDefault(t *testing.T) {
	f := newSnapshotFixture()
	uc := f.useCase()

	got, err := uc.Technicals(context.Background(), "aapl", "2Y")
	require.NoError(t, err)
	assert.Equal(t, "6M", got.Timeframe)
	assert.Equal(t, 55.0, got.Momentum.RSI14.Float64)

	_, err = uc.Technicals(context.Background(), "aapl", "1Y")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTechnicals_FreshWithinSevenDays(t *testing.T) {
	f := newSnapshotFixture()
	f.techRepo.put(models.TechnicalSnapshot{Symbol: "AAPL", Timeframe: "6M", AsOf: testNow.AddDate(0, 0, -6), Source: models.SourceOther})
	uc := f.useCase()

	got, err := uc.Technicals(context.Background(), "AAPL", "6M")
	require.NoError(t, err)
	assert.Equal(t, models.SourceOther, got.Source)
	assert.Zero(t, f.techRepo.appendCount())
}

func TestAppendGuard_HeldLockSkipsWrite(t *testing.T) {
	f := newSnapshotFixture()
	locks := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = locks.Close() })
	uc := f.useCase(WithAppendGuard(locks))

	ok, err := locks.TryLock(context.Background(), pkgcache.Key("snapshot", "fundamentals", "AAPL"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := uc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatic, got.Source)
	assert.Zero(t, f.fundRepo.appendCount())
}

func TestAppendGuard_FailedAppendReleasesLock(t *testing.T) {
	f := newSnapshotFixture()
	locks := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = locks.Close() })
	uc := f.useCase(WithAppendGuard(locks))

	f.fundRepo.addErr = errors.New("transient insert failure")
	_, err := uc.Fundamentals(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Zero(t, f.fundRepo.appendCount())

	f.fundRepo.addErr = nil
	got, err := uc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 1, f.fundRepo.appendCount())

	_, err = uc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, f.fundRepo.appendCount())
}

func TestAppendGuard_ConcurrentMissesAppendOnce(t *testing.T) {
	f := newSnapshotFixture()
	locks := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = locks.Close() })
	uc := f.useCase(WithAppendGuard(locks))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := uc.Fundamentals(context.Background(), "AAPL")
			assert.NoError(t, err)
			assert.Equal(t, "AAPL", got.Symbol)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.fundRepo.appendCount())
}

func TestCombined_PartsIndependentlyOptional(t *testing.T) {
	f := newSnapshotFixture()
	f.fundSrc.data["INFY"] = models.FundamentalsSnapshot{PE: null.FloatFrom(24)}
	uc := f.useCase()

	got, err := uc.Combined(context.Background(), "infy", "")
	require.NoError(t, err)
	assert.Equal(t, "INFY", got.Symbol)
	require.NotNil(t, got.Fundamentals)
	assert.Nil(t, got.Technical)

	empty, err := uc.Combined(context.Background(), "ZZZZ", "1M")
	require.NoError(t, err)
	assert.Equal(t, "ZZZZ", empty.Symbol)
	assert.Nil(t, empty.Fundamentals)
	assert.Nil(t, empty.Technical)
}

func TestCombined_FailurePropagates(t *testing.T) {
	f := newSnapshotFixture()
	boom := errors.New("db down")
	f.techRepo.errs["AAPL"] = boom
	uc := f.useCase()

	_, err := uc.Combined(context.Background(), "AAPL", "6M")
	assert.ErrorIs(t, err, boom)
}
