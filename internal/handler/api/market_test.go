package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketSnap/internal/domain/models"
	xhttp "MarketSnap/pkg/http"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type stubSnapshots struct {
	fund     *models.FundamentalsSnapshot
	tech     *models.TechnicalSnapshot
	combined *models.CombinedMarketSnapshot
	err      error
	gotTF    string
}

func (s *stubSnapshots) Fundamentals(_ context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fund, nil
}

func (s *stubSnapshots) Technicals(_ context.Context, symbol, timeframe string) (*models.TechnicalSnapshot, error) {
	s.gotTF = timeframe
	if s.err != nil {
		return nil, s.err
	}
	return s.tech, nil
}

func (s *stubSnapshots) Combined(_ context.Context, symbol, timeframe string) (*models.CombinedMarketSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.combined != nil {
		return s.combined, nil
	}
	return &models.CombinedMarketSnapshot{Symbol: strings.ToUpper(symbol)}, nil
}

type stubHistory struct {
	res *models.MarketHistoryResponse
	err error
}

func (s *stubHistory) History(_ context.Context, symbol, interval, rng string) (*models.MarketHistoryResponse, error) {
	return s.res, s.err
}

type stubAnalysis struct {
	res      []models.WeakStockReport
	err      error
	gotLimit int
}

func (s *stubAnalysis) Weakest(_ context.Context, _ string, limit int) ([]models.WeakStockReport, error) {
	s.gotLimit = limit
	return s.res, s.err
}

type stubRefresh struct {
	got *models.RefreshRequest
	err error
}

func (s *stubRefresh) Request(_ context.Context, req models.RefreshRequest) (*models.RefreshAck, error) {
	s.got = &req
	if s.err != nil {
		return nil, s.err
	}
	return &models.RefreshAck{
		Status:    models.RefreshStatusStarted,
		RequestID: "req-1",
		Symbols:   []string{"INFY", "TCS"},
		Types:     models.AllRefreshTypes,
	}, nil
}

type testDeps struct {
	snapshots *stubSnapshots
	history   *stubHistory
	analysis  *stubAnalysis
	refresh   *stubRefresh
}

func newTestServer(guard ...echo.MiddlewareFunc) (*echo.Echo, *testDeps) {
	d := &testDeps{
		snapshots: &stubSnapshots{},
		history:   &stubHistory{},
		analysis:  &stubAnalysis{},
		refresh:   &stubRefresh{},
	}
	e := echo.New()
	NewMarketHandler(nil, d.snapshots, d.history, d.analysis, d.refresh, guard...).RegisterRoutes(e)
	return e, d
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) xhttp.APIResponse {
	t.Helper()
	var env struct {
		Status  int               `json:"status"`
		Message string            `json:"message"`
		Data    []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data[0], &first))
	return xhttp.APIResponse{Status: env.Status, Message: env.Message, Data: first}
}

func TestFundamentals_OK(t *testing.T) {
	e, d := newTestServer()
	d.snapshots.fund = &models.FundamentalsSnapshot{
		Symbol: "AAPL", AsOf: asOf, Source: models.SourceStatic, PE: null.FloatFrom(28.5),
	}

	rec := do(e, http.MethodGet, "/market/fundamentals/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "static_snapshot", body["source"])
	assert.Equal(t, 28.5, body["pe"])
	assert.Nil(t, body["pb"])
	assert.Contains(t, body, "pb")
}

func TestFundamentals_NotFound(t *testing.T) {
	e, d := newTestServer()
	d.snapshots.err = models.ErrNotFound

	rec := do(e, http.MethodGet, "/market/fundamentals/xyz", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusNotFound, env.Status)
	first := env.Data.(map[string]interface{})
	assert.Equal(t, "ERR_NOT_FOUND", first["code"])
	assert.Equal(t, "no fundamentals for XYZ", first["message"])
}

func TestFundamentals_InternalErrorHidesDetails(t *testing.T) {
	e, d := newTestServer()
	d.snapshots.err = errors.New("dial tcp 10.0.0.5:9000: connection refused")

	rec := do(e, http.MethodGet, "/market/fundamentals/AAPL", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "ERR_INTERNAL", env.Data.(map[string]interface{})["code"])
}

func TestTechnical_PassesTimeframeThrough(t *testing.T) {
	e, d := newTestServer()
	d.snapshots.tech = &models.TechnicalSnapshot{Symbol: "AAPL", Timeframe: "6M", AsOf: asOf}

	rec := do(e, http.MethodGet, "/market/technical/AAPL?timeframe=2Y", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2Y", d.snapshots.gotTF)
}

func TestTechnical_NotFound(t *testing.T) {
	e, d := newTestServer()
	d.snapshots.err = models.ErrNotFound

	rec := do(e, http.MethodGet, "/market/technical/xyz?timeframe=9M", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCombined_NeverNotFound(t *testing.T) {
	e, _ := newTestServer()

	rec := do(e, http.MethodGet, "/market/combined/zzzz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbol":"ZZZZ","fundamentals":null,"technical":null}`, rec.Body.String())
}

func TestCombined_Failure(t *testing.T) {
	e, d := newTestServer()
	d.snapshots.err = errors.New("db down")

	rec := do(e, http.MethodGet, "/market/combined/AAPL", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistory_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		want string
	}{
		{err: models.ErrNotFound, code: http.StatusNotFound, want: "ERR_NOT_FOUND"},
		{err: fmt.Errorf("%w: deadline", models.ErrUpstreamTimeout), code: http.StatusGatewayTimeout, want: "ERR_UPSTREAM_TIMEOUT"},
		{err: fmt.Errorf("%w: 500", models.ErrUpstream), code: http.StatusBadGateway, want: "ERR_UPSTREAM"},
		{err: errors.New("weird"), code: http.StatusInternalServerError, want: "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			e, d := newTestServer()
			d.history.err = tt.err

			rec := do(e, http.MethodGet, "/market/history/AAPL?interval=1d&range=1mo", "")
			require.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.want, decodeEnvelope(t, rec).Data.(map[string]interface{})["code"])
		})
	}
}

func TestHistory_OK(t *testing.T) {
	e, d := newTestServer()
	d.history.res = &models.MarketHistoryResponse{
		Symbol: "NSE:INFY", Interval: "1d", Range: "1mo",
		Data: []models.MarketHistoryPoint{{Date: asOf, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}},
	}

	rec := do(e, http.MethodGet, "/market/history/NSE:INFY", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.MarketHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NSE:INFY", body.Symbol)
	require.Len(t, body.Data, 1)
	assert.Equal(t, int64(100), body.Data[0].Volume)
}

func TestWeakest_LimitHandling(t *testing.T) {
	e, d := newTestServer()
	d.analysis.res = []models.WeakStockReport{{
		WeakStock:  models.WeakStock{Symbol: "TCS", PnL: decimal.NewFromInt(-500)},
		MarketData: models.CombinedMarketSnapshot{Symbol: "TCS"},
	}}

	rec := do(e, http.MethodGet, "/market/analysis/weakest/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, d.analysis.gotLimit)

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, -500.0, body[0]["pnl"])
	assert.NotContains(t, body[0], "errors")

	rec = do(e, http.MethodGet, "/market/analysis/weakest/u1?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, d.analysis.gotLimit)

	clamped := map[string]int{"51": 50, "1000": 50, "-1": 0, "0": 0}
	for raw, want := range clamped {
		rec = do(e, http.MethodGet, "/market/analysis/weakest/u1?limit="+raw, "")
		require.Equal(t, http.StatusOK, rec.Code, "limit=%s", raw)
		assert.Equal(t, want, d.analysis.gotLimit, "limit=%s", raw)
	}

	rec = do(e, http.MethodGet, "/market/analysis/weakest/u1?limit=0x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeakest_Failure(t *testing.T) {
	e, d := newTestServer()
	d.analysis.err = errors.New("positions query failed")

	rec := do(e, http.MethodGet, "/market/analysis/weakest/u1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRefresh_EmptyBodyAcks(t *testing.T) {
	e, d := newTestServer()

	rec := do(e, http.MethodPost, "/market/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"refresh_started","requestId":"req-1","symbols":["INFY","TCS"],"types":["fundamental","technical"]}`, rec.Body.String())
	require.NotNil(t, d.refresh.got)
	assert.Empty(t, d.refresh.got.Symbols)
}

func TestRefresh_BindsBody(t *testing.T) {
	e, d := newTestServer()

	rec := do(e, http.MethodPost, "/market/refresh", `{"symbols":["aapl"],"types":["technical"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"aapl"}, d.refresh.got.Symbols)
	assert.Equal(t, []string{"technical"}, d.refresh.got.Types)
}

func TestRefresh_InvalidType(t *testing.T) {
	e, d := newTestServer()

	rec := do(e, http.MethodPost, "/market/refresh", `{"types":["dividends"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, d.refresh.got)

	first := decodeEnvelope(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "ERR_ONEOF", first["code"])
	assert.Equal(t, "types[0]", first["field"])
}

func TestRefresh_MalformedBody(t *testing.T) {
	e, _ := newTestServer()

	rec := do(e, http.MethodPost, "/market/refresh", `{"symbols":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_GuardRuns(t *testing.T) {
	deny := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
		}
	}
	e, d := newTestServer(deny)

	rec := do(e, http.MethodPost, "/market/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Nil(t, d.refresh.got)
}

func TestRefresh_DispatchFailure(t *testing.T) {
	e, d := newTestServer()
	d.refresh.err = errors.New("broker unreachable")

	rec := do(e, http.MethodPost, "/market/refresh", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "broker")
}
