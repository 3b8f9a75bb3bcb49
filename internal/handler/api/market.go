package api

import (
	"context"
	"errors"
	"strings"

	"MarketSnap/internal/domain/models"
	xhttp "MarketSnap/pkg/http"
	applogger "MarketSnap/pkg/logger"
	"MarketSnap/pkg/util"

	"github.com/labstack/echo/v4"
)

type SnapshotService interface {
	Fundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error)
	Technicals(ctx context.Context, symbol, timeframe string) (*models.TechnicalSnapshot, error)
	Combined(ctx context.Context, symbol, timeframe string) (*models.CombinedMarketSnapshot, error)
}

type HistoryService interface {
	History(ctx context.Context, symbol, interval, rng string) (*models.MarketHistoryResponse, error)
}

type AnalysisService interface {
	Weakest(ctx context.Context, userID string, limit int) ([]models.WeakStockReport, error)
}

type RefreshService interface {
	Request(ctx context.Context, req models.RefreshRequest) (*models.RefreshAck, error)
}

// MarketHandler serves the /market API.
type MarketHandler struct {
	logger    *applogger.Logger
	snapshots SnapshotService
	history   HistoryService
	analysis  AnalysisService
	refresh   RefreshService
	// refreshGuard runs before POST /refresh, e.g. a rate limiter.
	refreshGuard []echo.MiddlewareFunc
}

func NewMarketHandler(
	logger *applogger.Logger,
	snapshots SnapshotService,
	history HistoryService,
	analysis AnalysisService,
	refresh RefreshService,
	refreshGuard ...echo.MiddlewareFunc,
) *MarketHandler {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &MarketHandler{
		logger:       logger,
		snapshots:    snapshots,
		history:      history,
		analysis:     analysis,
		refresh:      refresh,
		refreshGuard: refreshGuard,
	}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/market")
	g.GET("/fundamentals/:symbol", h.Fundamentals)
	g.GET("/technical/:symbol", h.Technical)
	g.GET("/combined/:symbol", h.Combined)
	g.GET("/history/:symbol", h.History)
	g.GET("/analysis/weakest/:userId", h.Weakest)
	g.POST("/refresh", h.Refresh, h.refreshGuard...)
}

func (h *MarketHandler) Fundamentals(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.snapshots.Fundamentals(c.Request().Context(), req.Symbol)
	if errors.Is(err, models.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no fundamentals for %s", util.NormalizeSymbol(req.Symbol)))
	}
	if err != nil {
		return h.internal(c, "fundamentals", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Technical(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.snapshots.Technicals(c.Request().Context(), req.Symbol, req.Timeframe)
	if errors.Is(err, models.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no technicals for %s", util.NormalizeSymbol(req.Symbol)))
	}
	if err != nil {
		return h.internal(c, "technical", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Combined never returns 404; missing parts are null.
func (h *MarketHandler) Combined(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.snapshots.Combined(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		return h.internal(c, "combined", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.history.History(c.Request().Context(), req.Symbol, req.Interval, req.Range)
	switch {
	case err == nil:
		return xhttp.SuccessResponse(c, res)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no price history for %s", strings.TrimSpace(req.Symbol)))
	case errors.Is(err, models.ErrUpstreamTimeout):
		return xhttp.AppErrorResponse(c, xhttp.GatewayTimeoutError("price history provider timed out").WithError(err))
	case errors.Is(err, models.ErrUpstream):
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("price history provider failed").WithError(err))
	default:
		return h.internal(c, "history", req.Symbol, err)
	}
}

func (h *MarketHandler) Weakest(c echo.Context) error {
	req := &models.WeakestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analysis.Weakest(c.Request().Context(), req.UserID, req.EffectiveLimit())
	if err != nil {
		h.logger.Error("weakest positions failed",
			applogger.String("user_id", req.UserID), applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, res)
}

// Refresh acknowledges as soon as jobs are dispatched.
func (h *MarketHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ack, err := h.refresh.Request(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("refresh dispatch failed",
			applogger.Strings("symbols", req.Symbols), applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, ack)
}

func (h *MarketHandler) internal(c echo.Context, op, symbol string, err error) error {
	h.logger.Error(op+" lookup failed",
		applogger.String("symbol", symbol), applogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}
