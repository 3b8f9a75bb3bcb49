package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	applogger "MarketSnap/pkg/logger"
)

// Option configures the SQL repositories.
type Option func(*sqlRepo)

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(r *sqlRepo) { r.l = l }
}

// WithQueryTimeout bounds every statement issued by the repository.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *sqlRepo) { r.timeout = d }
}

// sqlRepo carries what every table repository shares.
type sqlRepo struct {
	table   string
	timeout time.Duration
	l       *applogger.Logger
}

func newSQLRepo(table string, opts []Option) sqlRepo {
	r := sqlRepo{table: table, timeout: 5 * time.Second, l: applogger.NewNop()}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r *sqlRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *sqlRepo) logErr(op string, err error, fields ...applogger.Field) {
	r.l.Error("sql "+op+" error", append(fields, applogger.String("table", r.table), applogger.Error(err))...)
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeList fails loudly on malformed JSON instead of returning an empty list.
func decodeList(column, raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
