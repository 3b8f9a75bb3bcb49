package util

import "strings"

// NormalizeSymbol trims and upper-cases a ticker. Every snapshot key goes through it.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSymbols upper-cases the list and drops blanks and duplicates,
// keeping first-seen order.
func NormalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var exchangeSuffix = map[string]string{
	"NSE": ".NS",
	"NSC": ".NS",
	"BSE": ".BO",
}

// YahooTicker maps exchange-prefixed tickers ("NSE:INFY", "BSE:500325") to the
// suffix form Yahoo expects ("INFY.NS", "500325.BO"). Anything already dotted,
// or with an unknown prefix, is returned unchanged.
func YahooTicker(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		return s
	}
	prefix, base, ok := strings.Cut(s, ":")
	if !ok || base == "" {
		return s
	}
	suffix, known := exchangeSuffix[strings.ToUpper(prefix)]
	if !known {
		return s
	}
	return base + suffix
}
