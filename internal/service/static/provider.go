// Package static serves snapshot seed data loaded once at startup.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	domsvc "MarketSnap/internal/domain/service"
	"MarketSnap/pkg/util"
)

var (
	_ domsvc.FundamentalsProvider = (*FundamentalsProvider)(nil)
	_ domsvc.TechnicalsProvider   = (*TechnicalsProvider)(nil)
)

// Option configures the static providers.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the asOf stamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) stamp() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}

// FundamentalsProvider looks symbols up in an immutable seed table.
type FundamentalsProvider struct {
	seeds map[string]models.FundamentalsSnapshot
	opts  options
}

// NewFundamentalsProvider indexes seeds by upper-cased symbol.
func NewFundamentalsProvider(seeds map[string]models.FundamentalsSnapshot, opts ...Option) *FundamentalsProvider {
	idx := make(map[string]models.FundamentalsSnapshot, len(seeds))
	for sym, s := range seeds {
		idx[util.NormalizeSymbol(sym)] = s
	}
	return &FundamentalsProvider{seeds: idx, opts: buildOptions(opts)}
}

// LoadFundamentals reads a {"SYMBOL": {...fields}} JSON file.
func LoadFundamentals(path string, opts ...Option) (*FundamentalsProvider, error) {
	var seeds map[string]models.FundamentalsSnapshot
	if err := readJSON(path, &seeds); err != nil {
		return nil, err
	}
	return NewFundamentalsProvider(seeds, opts...), nil
}

// Fundamentals returns the seed for symbol stamped with the current time.
func (p *FundamentalsProvider) Fundamentals(_ context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	key := util.NormalizeSymbol(symbol)
	base, ok := p.seeds[key]
	if !ok {
		return nil, models.ErrNotFound
	}

	s := base
	s.Symbol = key
	s.AsOf = p.opts.stamp()
	s.Source = models.SourceStatic
	s.QualityTags = cloneList(base.QualityTags)
	return &s, nil
}

// Len is the number of seeded symbols.
func (p *FundamentalsProvider) Len() int { return len(p.seeds) }

// TechnicalsProvider looks (symbol, timeframe) pairs up in a seed table.
type TechnicalsProvider struct {
	seeds map[string]map[domrepo.Timeframe]models.TechnicalSnapshot
	opts  options
}

func NewTechnicalsProvider(seeds map[string]map[string]models.TechnicalSnapshot, opts ...Option) *TechnicalsProvider {
	idx := make(map[string]map[domrepo.Timeframe]models.TechnicalSnapshot, len(seeds))
	for sym, byTF := range seeds {
		m := make(map[domrepo.Timeframe]models.TechnicalSnapshot, len(byTF))
		for tf, s := range byTF {
			m[domrepo.Timeframe(tf)] = s
		}
		idx[util.NormalizeSymbol(sym)] = m
	}
	return &TechnicalsProvider{seeds: idx, opts: buildOptions(opts)}
}

// LoadTechnicals reads a {"SYMBOL": {"6M": {...fields}}} JSON file.
func LoadTechnicals(path string, opts ...Option) (*TechnicalsProvider, error) {
	var seeds map[string]map[string]models.TechnicalSnapshot
	if err := readJSON(path, &seeds); err != nil {
		return nil, err
	}
	return NewTechnicalsProvider(seeds, opts...), nil
}

func (p *TechnicalsProvider) Technicals(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.TechnicalSnapshot, error) {
	key := util.NormalizeSymbol(symbol)
	base, ok := p.seeds[key][tf]
	if !ok {
		return nil, models.ErrNotFound
	}

	s := base
	s.Symbol = key
	s.Timeframe = string(tf)
	s.AsOf = p.opts.stamp()
	s.Source = models.SourceStatic
	s.PatternSignals = cloneList(base.PatternSignals)
	return &s, nil
}

func (p *TechnicalsProvider) Len() int { return len(p.seeds) }

func readJSON(path string, dest interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}
	return nil
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
