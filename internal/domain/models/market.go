package models

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

func init() {
	// Money values go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Snapshot origins.
const (
	SourceStatic       = "static_snapshot"
	SourceAlphaVantage = "alpha_vantage"
	SourceOther        = "other"
)

// FundamentalsSnapshot is a point-in-time set of valuation and quality ratios.
type FundamentalsSnapshot struct {
	Symbol        string     `json:"symbol"`
	AsOf          time.Time  `json:"asOf"`
	Source        string     `json:"source"`
	PE            null.Float `json:"pe"`
	PB            null.Float `json:"pb"`
	DebtToEquity  null.Float `json:"debtToEquity"`
	ROE           null.Float `json:"roe"`
	MarketCap     null.Float `json:"marketCap"`
	RevenueCAGR3y null.Float `json:"revenueCagr3y"`
	EPSCAGR3y     null.Float `json:"epsCagr3y"`
	DividendYield null.Float `json:"dividendYield"`
	QualityTags   []string   `json:"qualityTags"`
}

type PriceBlock struct {
	LastClose   null.Float `json:"lastClose"`
	ChangePct1D null.Float `json:"changePct1D"`
	High52W     null.Float `json:"high52W"`
	Low52W      null.Float `json:"low52W"`
}

type TrendBlock struct {
	SMA20  null.Float `json:"sma20"`
	SMA50  null.Float `json:"sma50"`
	SMA200 null.Float `json:"sma200"`
}

type MomentumBlock struct {
	RSI14 null.Float `json:"rsi14"`
}

type VolatilityBlock struct {
	Beta null.Float `json:"beta"`
}

// TechnicalSnapshot holds indicator values for one symbol over one timeframe.
type TechnicalSnapshot struct {
	Symbol         string          `json:"symbol"`
	Timeframe      string          `json:"timeframe"`
	AsOf           time.Time       `json:"asOf"`
	Source         string          `json:"source"`
	Price          PriceBlock      `json:"price"`
	Trend          TrendBlock      `json:"trend"`
	Momentum       MomentumBlock   `json:"momentum"`
	Volatility     VolatilityBlock `json:"volatility"`
	PatternSignals []string        `json:"patternSignals"`
}

// CombinedMarketSnapshot is assembled per request and never persisted.
type CombinedMarketSnapshot struct {
	Symbol       string                `json:"symbol"`
	Fundamentals *FundamentalsSnapshot `json:"fundamentals"`
	Technical    *TechnicalSnapshot    `json:"technical"`
}

type MarketHistoryPoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type MarketHistoryResponse struct {
	Symbol   string               `json:"symbol"`
	Interval string               `json:"interval"`
	Range    string               `json:"range"`
	Data     []MarketHistoryPoint `json:"data"`
}

// WeakStock is a portfolio position ranked by unrealised P&L.
type WeakStock struct {
	Symbol       string          `json:"symbol"`
	PnL          decimal.Decimal `json:"pnl"`
	DayChangePct float64         `json:"dayChangePct"`
	CurrentValue decimal.Decimal `json:"currentValue"`
}

// WeakStockReport is a weak position plus its market snapshot. Errors holds
// per-part lookup failures ("fundamentals", "technical") when any occurred.
type WeakStockReport struct {
	WeakStock
	MarketData CombinedMarketSnapshot `json:"marketData"`
	Errors     map[string]string      `json:"errors,omitempty"`
}
