package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketSnap/internal/domain/models"
	applogger "MarketSnap/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RefreshScheduler dispatches a watchlist refresh on a cron schedule
// (six fields, seconds first).
type RefreshScheduler struct {
	cron    *cron.Cron
	refresh *RefreshUseCase
	timeout time.Duration
	enabled bool
	l       *applogger.Logger
}

// NewRefreshScheduler registers the refresh task. An empty spec yields a
// scheduler whose Start and Stop do nothing.
func NewRefreshScheduler(spec string, refresh *RefreshUseCase, timeout time.Duration, l *applogger.Logger) (*RefreshScheduler, error) {
	if l == nil {
		l = applogger.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &RefreshScheduler{
		cron:    cron.New(cron.WithSeconds()),
		refresh: refresh,
		timeout: timeout,
		l:       l,
	}
	if spec == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return nil, fmt.Errorf("register refresh schedule %q: %w", spec, err)
	}
	s.enabled = true
	return s, nil
}

func (s *RefreshScheduler) Enabled() bool { return s.enabled }

func (s *RefreshScheduler) Start() {
	if !s.enabled {
		return
	}
	s.cron.Start()
	s.l.Info("refresh scheduler started")
}

// Stop waits for a running tick to finish or ctx to expire.
func (s *RefreshScheduler) Stop(ctx context.Context) {
	if !s.enabled {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.l.Info("refresh scheduler stopped")
}

// RunNow dispatches one watchlist refresh.
func (s *RefreshScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ack, err := s.refresh.Request(ctx, models.RefreshRequest{})
	if err != nil {
		s.l.Error("scheduled refresh failed", applogger.Error(err))
		return
	}
	s.l.Info("scheduled refresh dispatched",
		applogger.String("request_id", ack.RequestID),
		applogger.Int("symbols", len(ack.Symbols)))
}
