package repository

import "fmt"

// Drivers accepted by Schema.
const (
	DriverSQLite     = "sqlite"
	DriverClickHouse = "clickhouse"
)

// Tables holds fully-qualified table names ("db.table" on ClickHouse).
type Tables struct {
	Fundamentals string
	Technicals   string
	Positions    string
}

// Schema returns idempotent DDL for the given driver. Both dialects share
// column names and types as seen through database/sql: as_of is unix
// milliseconds, tag lists are JSON text, nullable metrics are nullable floats.
func Schema(driver string, t Tables) ([]string, error) {
	switch driver {
	case DriverClickHouse:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				symbol String,
				as_of Int64,
				source String,
				pe Nullable(Float64),
				pb Nullable(Float64),
				debt_to_equity Nullable(Float64),
				roe Nullable(Float64),
				market_cap Nullable(Float64),
				revenue_cagr_3y Nullable(Float64),
				eps_cagr_3y Nullable(Float64),
				dividend_yield Nullable(Float64),
				quality_tags String,
				raw_payload String
			) ENGINE = MergeTree ORDER BY (symbol, as_of)`, t.Fundamentals),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				symbol String,
				timeframe LowCardinality(String),
				as_of Int64,
				source String,
				last_close Nullable(Float64),
				change_pct_1d Nullable(Float64),
				high_52w Nullable(Float64),
				low_52w Nullable(Float64),
				sma_20 Nullable(Float64),
				sma_50 Nullable(Float64),
				sma_200 Nullable(Float64),
				rsi_14 Nullable(Float64),
				beta Nullable(Float64),
				pattern_signals String,
				raw_payload String
			) ENGINE = MergeTree ORDER BY (symbol, timeframe, as_of)`, t.Technicals),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				user_id String,
				symbol String,
				pnl Float64,
				day_change_pct Nullable(Float64),
				current_value Float64
			) ENGINE = ReplacingMergeTree ORDER BY (user_id, symbol)`, t.Positions),
		}, nil
	case DriverSQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				symbol TEXT NOT NULL,
				as_of INTEGER NOT NULL,
				source TEXT NOT NULL,
				pe REAL,
				pb REAL,
				debt_to_equity REAL,
				roe REAL,
				market_cap REAL,
				revenue_cagr_3y REAL,
				eps_cagr_3y REAL,
				dividend_yield REAL,
				quality_tags TEXT NOT NULL DEFAULT '[]',
				raw_payload TEXT
			)`, t.Fundamentals),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_symbol_asof ON %s (symbol, as_of)`, t.Fundamentals, t.Fundamentals),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				symbol TEXT NOT NULL,
				timeframe TEXT NOT NULL,
				as_of INTEGER NOT NULL,
				source TEXT NOT NULL,
				last_close REAL,
				change_pct_1d REAL,
				high_52w REAL,
				low_52w REAL,
				sma_20 REAL,
				sma_50 REAL,
				sma_200 REAL,
				rsi_14 REAL,
				beta REAL,
				pattern_signals TEXT NOT NULL DEFAULT '[]',
				raw_payload TEXT
			)`, t.Technicals),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_key_asof ON %s (symbol, timeframe, as_of)`, t.Technicals, t.Technicals),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT NOT NULL,
				symbol TEXT NOT NULL,
				pnl REAL NOT NULL,
				day_change_pct REAL,
				current_value REAL NOT NULL,
				PRIMARY KEY (user_id, symbol)
			)`, t.Positions),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
