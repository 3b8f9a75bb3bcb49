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

var _ domrepo.FundamentalsRepository = (*SQLFundamentalsRepository)(nil)

// SQLFundamentalsRepository stores fundamentals snapshots as append-only rows.
type SQLFundamentalsRepository struct {
	sqlRepo
	db *sql.DB
}

func NewSQLFundamentalsRepository(db *sql.DB, table string, opts ...Option) *SQLFundamentalsRepository {
	return &SQLFundamentalsRepository{sqlRepo: newSQLRepo(table, opts), db: db}
}

// GetLatest returns the most recent row by as_of.
func (r *SQLFundamentalsRepository) GetLatest(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT symbol, as_of, source, pe, pb, debt_to_equity, roe, market_cap,
		       revenue_cagr_3y, eps_cagr_3y, dividend_yield, quality_tags
		FROM %s
		WHERE symbol = ?
		ORDER BY as_of DESC
		LIMIT 1`, r.table)

	var (
		s    models.FundamentalsSnapshot
		asOf int64
		tags string
	)
	err := r.db.QueryRowContext(ctx, q, symbol).Scan(
		&s.Symbol, &asOf, &s.Source,
		&s.PE, &s.PB, &s.DebtToEquity, &s.ROE, &s.MarketCap,
		&s.RevenueCAGR3y, &s.EPSCAGR3y, &s.DividendYield, &tags,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logErr("fundamentals get_latest", err, applogger.String("symbol", symbol))
		return nil, fmt.Errorf("get latest fundamentals: %w", err)
	}

	s.AsOf = fromMillis(asOf)
	if s.QualityTags, err = decodeList("quality_tags", tags); err != nil {
		r.logErr("fundamentals decode", err, applogger.String("symbol", symbol))
		return nil, err
	}
	return &s, nil
}

// Append inserts s as a new row. Existing rows are never updated.
func (r *SQLFundamentalsRepository) Append(ctx context.Context, s *models.FundamentalsSnapshot) error {
	tags, err := encodeList(s.QualityTags)
	if err != nil {
		return fmt.Errorf("encode quality_tags: %w", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode raw_payload: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf(`
		INSERT INTO %s (symbol, as_of, source, pe, pb, debt_to_equity, roe, market_cap,
		                revenue_cagr_3y, eps_cagr_3y, dividend_yield, quality_tags, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table)

	_, err = r.db.ExecContext(ctx, q,
		s.Symbol, toMillis(s.AsOf), s.Source,
		s.PE, s.PB, s.DebtToEquity, s.ROE, s.MarketCap,
		s.RevenueCAGR3y, s.EPSCAGR3y, s.DividendYield, tags, string(raw),
	)
	if err != nil {
		r.logErr("fundamentals append", err, applogger.String("symbol", s.Symbol))
		return fmt.Errorf("append fundamentals: %w", err)
	}
	return nil
}
