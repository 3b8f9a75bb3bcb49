package models

// Requests for market HTTP endpoints. Enum query params are free-form strings
// here; they are coerced to defaults downstream instead of being rejected.

type SnapshotRequest struct {
	Symbol    string `param:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe"`
}

type HistoryRequest struct {
	Symbol   string `param:"symbol" validate:"required,max=32"`
	Interval string `query:"interval"`
	Range    string `query:"range"`
}

// MaxWeakestLimit caps ?limit on the weakest-positions endpoint.
const MaxWeakestLimit = 50

type WeakestRequest struct {
	UserID string `param:"userId" validate:"required,max=64"`
	Limit  int    `query:"limit"`
}

// EffectiveLimit clamps Limit into 0..MaxWeakestLimit; 0 means the configured default.
func (r WeakestRequest) EffectiveLimit() int {
	switch {
	case r.Limit <= 0:
		return 0
	case r.Limit > MaxWeakestLimit:
		return MaxWeakestLimit
	}
	return r.Limit
}

type RefreshRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=100,dive,required,max=32"`
	Types   []string `json:"types" validate:"omitempty,dive,oneof=fundamental technical"`
}
