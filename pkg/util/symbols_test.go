package util

import (
	"reflect"
	"testing"
)

func TestYahooTicker(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"NSE:INFY", "INFY.NS"},
		{"NSC:INFY", "INFY.NS"},
		{"nse:TCS", "TCS.NS"},
		{"BSE:500325", "500325.BO"},
		{"INFY.NS", "INFY.NS"},
		{"BRK.B", "BRK.B"},
		{"AAPL", "AAPL"},
		{"NYSE:IBM", "NYSE:IBM"},
		{"NSE:", "NSE:"},
		{" RELIANCE ", "RELIANCE"},
	}
	for _, c := range cases {
		if got := YahooTicker(c.in); got != c.want {
			t.Fatalf("YahooTicker(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{"infy", " TCS", "", "INFY", "tcs "})
	want := []string{"INFY", "TCS"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected %v", got)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol(" aapl "); got != "AAPL" {
		t.Fatalf("unexpected %q", got)
	}
}
