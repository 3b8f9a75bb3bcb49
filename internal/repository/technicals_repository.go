package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	applogger "MarketSnap/pkg/logger"
)

var _ domrepo.TechnicalsRepository = (*SQLTechnicalsRepository)(nil)

// SQLTechnicalsRepository stores technical snapshots keyed by (symbol, timeframe).
type SQLTechnicalsRepository struct {
	sqlRepo
	db *sql.DB
}

func NewSQLTechnicalsRepository(db *sql.DB, table string, opts ...Option) *SQLTechnicalsRepository {
	return &SQLTechnicalsRepository{sqlRepo: newSQLRepo(table, opts), db: db}
}

func (r *SQLTechnicalsRepository) GetLatest(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.TechnicalSnapshot, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT symbol, timeframe, as_of, source,
		       last_close, change_pct_1d, high_52w, low_52w,
		       sma_20, sma_50, sma_200, rsi_14, beta, pattern_signals
		FROM %s
		WHERE symbol = ? AND timeframe = ?
		ORDER BY as_of DESC
		LIMIT 1`, r.table)

	var (
		s       models.TechnicalSnapshot
		asOf    int64
		signals string
	)
	err := r.db.QueryRowContext(ctx, q, symbol, string(tf)).Scan(
		&s.Symbol, &s.Timeframe, &asOf, &s.Source,
		&s.Price.LastClose, &s.Price.ChangePct1D, &s.Price.High52W, &s.Price.Low52W,
		&s.Trend.SMA20, &s.Trend.SMA50, &s.Trend.SMA200,
		&s.Momentum.RSI14, &s.Volatility.Beta, &signals,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logErr("technicals get_latest", err,
			applogger.String("symbol", symbol),
			applogger.String("timeframe", string(tf)),
		)
		return nil, fmt.Errorf("get latest technicals: %w", err)
	}

	s.AsOf = fromMillis(asOf)
	if s.PatternSignals, err = decodeList("pattern_signals", signals); err != nil {
		r.logErr("technicals decode", err, applogger.String("symbol", symbol))
		return nil, err
	}
	return &s, nil
}

func (r *SQLTechnicalsRepository) Append(ctx context.Context, s *models.TechnicalSnapshot) error {
	signals, err := encodeList(s.PatternSignals)
	if err != nil {
		return fmt.Errorf("encode pattern_signals: %w", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode raw_payload: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf(`
		INSERT INTO %s (symbol, timeframe, as_of, source,
		                last_close, change_pct_1d, high_52w, low_52w,
		                sma_20, sma_50, sma_200, rsi_14, beta, pattern_signals, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table)

	_, err = r.db.ExecContext(ctx, q,
		s.Symbol, s.Timeframe, toMillis(s.AsOf), s.Source,
		s.Price.LastClose, s.Price.ChangePct1D, s.Price.High52W, s.Price.Low52W,
		s.Trend.SMA20, s.Trend.SMA50, s.Trend.SMA200,
		s.Momentum.RSI14, s.Volatility.Beta, signals, string(raw),
	)
	if err != nil {
		r.logErr("technicals append", err,
			applogger.String("symbol", s.Symbol),
			applogger.String("timeframe", s.Timeframe),
		)
		return fmt.Errorf("append technicals: %w", err)
	}
	return nil
}
