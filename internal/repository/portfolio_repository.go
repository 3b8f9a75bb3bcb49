package repository

import (
	"context"
	"database/sql"
	"fmt"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	applogger "MarketSnap/pkg/logger"

	"github.com/guregu/null/v6"
)

var _ domrepo.PortfolioRepository = (*SQLPortfolioRepository)(nil)

// SQLPortfolioRepository reads positions written by the portfolio service.
type SQLPortfolioRepository struct {
	sqlRepo
	db *sql.DB
}

func NewSQLPortfolioRepository(db *sql.DB, table string, opts ...Option) *SQLPortfolioRepository {
	return &SQLPortfolioRepository{sqlRepo: newSQLRepo(table, opts), db: db}
}

// GetWeakest returns up to limit positions ordered by ascending P&L.
// A missing day change reads as zero.
func (r *SQLPortfolioRepository) GetWeakest(ctx context.Context, userID string, limit int) ([]models.WeakStock, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT symbol, pnl, day_change_pct, current_value
		FROM %s
		WHERE user_id = ?
		ORDER BY pnl ASC
		LIMIT ?`, r.table)

	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		r.logErr("positions get_weakest", err, applogger.String("user_id", userID))
		return nil, fmt.Errorf("get weakest positions: %w", err)
	}
	defer rows.Close()

	out := make([]models.WeakStock, 0, limit)
	for rows.Next() {
		var (
			w        models.WeakStock
			dayDelta null.Float
		)
		if err := rows.Scan(&w.Symbol, &w.PnL, &dayDelta, &w.CurrentValue); err != nil {
			r.logErr("positions scan", err, applogger.String("user_id", userID))
			return nil, fmt.Errorf("scan position: %w", err)
		}
		w.DayChangePct = dayDelta.Float64
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		r.logErr("positions rows", err, applogger.String("user_id", userID))
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
