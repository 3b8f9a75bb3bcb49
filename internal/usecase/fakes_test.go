package usecase

import (
	"context"
	"sync"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	pkgkafka "MarketSnap/pkg/kafka"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeFundRepo struct {
	mu      sync.Mutex
	rows    map[string][]models.FundamentalsSnapshot
	appends int
	getErr  error
	addErr  error
}

func newFakeFundRepo() *fakeFundRepo {
	return &fakeFundRepo{rows: map[string][]models.FundamentalsSnapshot{}}
}

func (r *fakeFundRepo) GetLatest(_ context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	var best *models.FundamentalsSnapshot
	for i := range r.rows[symbol] {
		s := r.rows[symbol][i]
		if best == nil || s.AsOf.After(best.AsOf) {
			best = &s
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	return best, nil
}

func (r *fakeFundRepo) Append(_ context.Context, s *models.FundamentalsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	r.rows[s.Symbol] = append(r.rows[s.Symbol], *s)
	r.appends++
	return nil
}

func (r *fakeFundRepo) put(s models.FundamentalsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.Symbol] = append(r.rows[s.Symbol], s)
}

func (r *fakeFundRepo) appendCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appends
}

type fakeTechRepo struct {
	mu      sync.Mutex
	rows    map[string][]models.TechnicalSnapshot
	appends int
	errs    map[string]error
}

func newFakeTechRepo() *fakeTechRepo {
	return &fakeTechRepo{rows: map[string][]models.TechnicalSnapshot{}, errs: map[string]error{}}
}

func (r *fakeTechRepo) GetLatest(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.TechnicalSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[symbol]; err != nil {
		return nil, err
	}
	var best *models.TechnicalSnapshot
	for i := range r.rows[symbol+":"+string(tf)] {
		s := r.rows[symbol+":"+string(tf)][i]
		if best == nil || s.AsOf.After(best.AsOf) {
			best = &s
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	return best, nil
}

func (r *fakeTechRepo) Append(_ context.Context, s *models.TechnicalSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := s.Symbol + ":" + s.Timeframe
	r.rows[k] = append(r.rows[k], *s)
	r.appends++
	return nil
}

func (r *fakeTechRepo) put(s models.TechnicalSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := s.Symbol + ":" + s.Timeframe
	r.rows[k] = append(r.rows[k], s)
}

func (r *fakeTechRepo) appendCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appends
}

type fakeFundSrc struct {
	mu    sync.Mutex
	data  map[string]models.FundamentalsSnapshot
	calls int
	err   error
}

func (s *fakeFundSrc) Fundamentals(_ context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[symbol]
	if !ok {
		return nil, models.ErrNotFound
	}
	v.Symbol = symbol
	v.AsOf = testNow
	v.Source = models.SourceStatic
	return &v, nil
}

func (s *fakeFundSrc) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeTechSrc struct {
	data map[string]map[domrepo.Timeframe]models.TechnicalSnapshot
}

func (s *fakeTechSrc) Technicals(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.TechnicalSnapshot, error) {
	v, ok := s.data[symbol][tf]
	if !ok {
		return nil, models.ErrNotFound
	}
	v.Symbol = symbol
	v.Timeframe = string(tf)
	v.AsOf = testNow
	v.Source = models.SourceStatic
	return &v, nil
}

type fakePortfolio struct {
	positions []models.WeakStock
	err       error
	gotLimit  int
}

func (p *fakePortfolio) GetWeakest(_ context.Context, _ string, limit int) ([]models.WeakStock, error) {
	p.gotLimit = limit
	if p.err != nil {
		return nil, p.err
	}
	if limit < len(p.positions) {
		return p.positions[:limit], nil
	}
	return p.positions, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []models.RefreshJob
	err  error
}

func (d *fakeDispatcher) Name() string { return "fake" }

func (d *fakeDispatcher) Dispatch(_ context.Context, jobs []models.RefreshJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, jobs...)
	return nil
}

func (d *fakeDispatcher) dispatched() []models.RefreshJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.RefreshJob(nil), d.jobs...)
}

type fakeBatchPublisher struct {
	topic string
	msgs  []pkgkafka.Message
}

func (p *fakeBatchPublisher) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return nil
}

type recordingMetrics struct {
	mu     sync.Mutex
	reads  map[string]int
	writes int
	errors map[string]int
	jobs   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{reads: map[string]int{}, errors: map[string]int{}, jobs: map[string]int{}}
}

func (m *recordingMetrics) RecordSnapshotRead(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[kind+"/"+outcome]++
}

func (m *recordingMetrics) RecordSnapshotWrite(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
}

func (m *recordingMetrics) RecordProviderLatency(string, time.Duration) {}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordRefreshJob(jobType, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobType+"/"+result]++
}
