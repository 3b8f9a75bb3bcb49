package repository

import (
	"fmt"
	"strings"
)

// Timeframe is the lookback window a technical snapshot was computed over.
type Timeframe string

const (
	TF1M Timeframe = "1M"
	TF3M Timeframe = "3M"
	TF6M Timeframe = "6M"
	TF1Y Timeframe = "1Y"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1M, TF3M, TF6M, TF1Y:
		return true
	default:
		return false
	}
}

// TimeframePolicy is the configured subset of timeframes plus the fallback
// used when a caller passes anything else.
type TimeframePolicy struct {
	allowed []Timeframe
	def     Timeframe
}

func NewTimeframePolicy(allowed []string, def string) (TimeframePolicy, error) {
	p := TimeframePolicy{def: Timeframe(def)}
	for _, s := range allowed {
		tf := Timeframe(s)
		if !IsValidTimeframe(tf) {
			return TimeframePolicy{}, fmt.Errorf("unsupported timeframe %q", s)
		}
		p.allowed = append(p.allowed, tf)
	}
	if !p.allows(p.def) {
		return TimeframePolicy{}, fmt.Errorf("default timeframe %q is not allowed", def)
	}
	return p, nil
}

// DefaultTimeframePolicy is 1M/3M/6M/1Y with 6M as the fallback.
func DefaultTimeframePolicy() TimeframePolicy {
	return TimeframePolicy{allowed: []Timeframe{TF1M, TF3M, TF6M, TF1Y}, def: TF6M}
}

func (p TimeframePolicy) Default() Timeframe { return p.def }

func (p TimeframePolicy) Allowed() []Timeframe {
	return append([]Timeframe(nil), p.allowed...)
}

// Normalize converts raw input to an allowed timeframe (or the default).
func (p TimeframePolicy) Normalize(s string) Timeframe {
	tf := Timeframe(strings.TrimSpace(s))
	if tf == "" || !p.allows(tf) {
		return p.def
	}
	return tf
}

func (p TimeframePolicy) allows(tf Timeframe) bool {
	for _, a := range p.allowed {
		if a == tf {
			return true
		}
	}
	return false
}

// Interval is the bar size of a price-history series.
type Interval string

const (
	Interval1D  Interval = "1d"
	Interval1Wk Interval = "1wk"
	Interval1Mo Interval = "1mo"
)

func DefaultInterval() Interval { return Interval1D }

// NormalizeInterval returns s when it is a supported interval, else the default.
func NormalizeInterval(s string) Interval {
	switch iv := Interval(strings.TrimSpace(s)); iv {
	case Interval1D, Interval1Wk, Interval1Mo:
		return iv
	default:
		return DefaultInterval()
	}
}

// Range is how far back a price-history series reaches.
type Range string

const (
	Range1Mo Range = "1mo"
	Range3Mo Range = "3mo"
	Range6Mo Range = "6mo"
	Range1Y  Range = "1y"
	RangeYTD Range = "ytd"
	RangeMax Range = "max"
)

func DefaultRange() Range { return Range1Mo }

// NormalizeRange returns s when it is a supported range, else the default.
func NormalizeRange(s string) Range {
	switch r := Range(strings.TrimSpace(s)); r {
	case Range1Mo, Range3Mo, Range6Mo, Range1Y, RangeYTD, RangeMax:
		return r
	default:
		return DefaultRange()
	}
}
