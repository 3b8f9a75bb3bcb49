// Package yahoo reads OHLCV history from the public Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"MarketSnap/internal/domain/models"
	domrepo "MarketSnap/internal/domain/repository"
	domsvc "MarketSnap/internal/domain/service"
	xhttp "MarketSnap/pkg/http"
	applogger "MarketSnap/pkg/logger"
	"MarketSnap/pkg/util"

	"golang.org/x/time/rate"
)

var _ domsvc.HistoryProvider = (*Client)(nil)

// Config holds the chart API settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// Client implements a HistoryProvider backed by the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	userAgent string
	http      *xhttp.Client
	limiter   *rate.Limiter
	l         *applogger.Logger
}

// New creates a chart client. A non-positive rate disables outbound limiting.
func New(cfg Config, l *applogger.Logger, opts ...xhttp.ClientOption) *Client {
	if l == nil {
		l = applogger.NewNop()
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)...),
		limiter:   rate.NewLimiter(limit, burst),
		l:         l.With(applogger.String("provider", "yahoo")),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []chartQuote `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *chartError `json:"error"`
	} `json:"chart"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// History fetches bars for symbol. Exchange-prefixed tickers are mapped to
// Yahoo suffixes first.
func (c *Client) History(ctx context.Context, symbol string, interval domrepo.Interval, rng domrepo.Range) ([]models.MarketHistoryPoint, error) {
	ticker := util.YahooTicker(symbol)
	if ticker == "" {
		return nil, models.ErrNotFound
	}

	// Wait fails when the deadline would pass before a token frees up.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrUpstreamTimeout, err)
	}

	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"interval": {string(interval)},
			"range":    {string(rng)},
		},
		Headers: map[string]string{"User-Agent": c.userAgent},
	}, &resp)
	if err != nil {
		return nil, c.classify(ctx, ticker, err)
	}

	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: yahoo %s: %s", models.ErrUpstream, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return []models.MarketHistoryPoint{}, nil
	}
	return toPoints(resp.Chart.Result[0].Timestamp, resp.Chart.Result[0].Indicators.Quote), nil
}

func toPoints(ts []int64, quotes []chartQuote) []models.MarketHistoryPoint {
	out := make([]models.MarketHistoryPoint, 0, len(ts))
	if len(quotes) == 0 {
		return out
	}
	q := quotes[0]

	for i, sec := range ts {
		o, h, lo, cl := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		// holidays and halted sessions come back as null bars
		if o == nil || h == nil || lo == nil || cl == nil {
			continue
		}
		var vol int64
		if v := at(q.Volume, i); v != nil {
			vol = int64(*v)
		}
		out = append(out, models.MarketHistoryPoint{
			Date:   time.Unix(sec, 0).UTC(),
			Open:   *o,
			High:   *h,
			Low:    *lo,
			Close:  *cl,
			Volume: vol,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func at(xs []*float64, i int) *float64 {
	if i >= len(xs) {
		return nil
	}
	return xs[i]
}

func (c *Client) classify(ctx context.Context, ticker string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		c.l.Warn("chart request timed out", applogger.String("ticker", ticker), applogger.Error(err))
		return fmt.Errorf("%w: %v", models.ErrUpstreamTimeout, err)
	}

	c.l.Error("chart request failed", applogger.String("ticker", ticker), applogger.Error(err))
	return fmt.Errorf("%w: %v", models.ErrUpstream, err)
}
