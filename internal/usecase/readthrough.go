package usecase

import (
	"context"
	"errors"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	pkgcache "MarketSnap/pkg/cache"
	applogger "MarketSnap/pkg/logger"
)

const (
	kindFundamentals = "fundamentals"
	kindTechnicals   = "technicals"
)

// Staleness is how old a persisted row may be before the read path refetches.
type Staleness struct {
	Months int
	Days   int
}

// Cutoff is the oldest asOf still considered fresh at now.
func (s Staleness) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, -s.Months, -s.Days)
}

// writeGuard serializes fallback appends per key through a shared lock.
// A nil cache disables the guard.
type writeGuard struct {
	cache pkgcache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

// acquire reports whether the caller should append. Lock backend errors
// fall back to appending.
func (g writeGuard) acquire(ctx context.Context, key string) bool {
	if g.cache == nil {
		return true
	}
	ok, err := g.cache.TryLock(ctx, key, g.ttl)
	if err != nil {
		g.l.Warn("append guard unavailable, writing unguarded",
			applogger.String("key", key), applogger.Error(err))
		return true
	}
	return ok
}

// release drops the lock after a failed append so the next request can retry
// the write instead of waiting out the ttl.
func (g writeGuard) release(ctx context.Context, key string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Unlock(ctx, key); err != nil {
		g.l.Warn("append guard release failed",
			applogger.String("key", key), applogger.Error(err))
	}
}

// snapshotSource is one read-through target: a persisted log plus its
// authoritative fallback.
type snapshotSource[T any] struct {
	kind     string
	key      string
	latest   func(context.Context) (*T, error)
	asOf     func(*T) time.Time
	fallback func(context.Context) (*T, error)
	append   func(context.Context, *T) error
}

type readThrough struct {
	guard   writeGuard
	metrics domrepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

// readSnapshot serves a fresh persisted row, otherwise fetches from the
// fallback, appends it and returns it. A stale row with no fallback data is
// not found.
func readSnapshot[T any](ctx context.Context, rt readThrough, fresh Staleness, src snapshotSource[T]) (*T, error) {
	row, err := src.latest(ctx)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		rt.metrics.RecordError(src.kind + "_read")
		return nil, err
	}

	outcome := domrepo.ReadMiss
	if row != nil {
		if src.asOf(row).After(fresh.Cutoff(rt.now())) {
			rt.metrics.RecordSnapshotRead(src.kind, domrepo.ReadHit)
			return row, nil
		}
		outcome = domrepo.ReadStale
	}

	fb, err := src.fallback(ctx)
	switch {
	case errors.Is(err, models.ErrNotFound):
		rt.metrics.RecordSnapshotRead(src.kind, domrepo.ReadNotFound)
		return nil, models.ErrNotFound
	case err != nil:
		rt.metrics.RecordError(src.kind + "_fallback")
		return nil, err
	}
	rt.metrics.RecordSnapshotRead(src.kind, outcome)

	lockKey := pkgcache.Key("snapshot", src.kind, src.key)
	if !rt.guard.acquire(ctx, lockKey) {
		rt.l.Debug("append skipped, another writer holds the key",
			applogger.String("kind", src.kind), applogger.String("key", src.key))
		return fb, nil
	}
	if err := src.append(ctx, fb); err != nil {
		rt.metrics.RecordError(src.kind + "_append")
		rt.guard.release(ctx, lockKey)
		return nil, err
	}
	rt.metrics.RecordSnapshotWrite(src.kind)
	rt.l.Debug("snapshot appended",
		applogger.String("kind", src.kind),
		applogger.String("key", src.key),
		applogger.String("outcome", outcome))
	return fb, nil
}
