package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/domain/models"
	xhttp "FinFusion/pkg/http"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/util"
)

// MarketUsecase reads live and historical snapshots.
type MarketUsecase interface {
	Snapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)
	History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketSnapshot, error)
}

type MarketHandler struct {
	market MarketUsecase
	l      *applogger.Logger
	now    func() time.Time
}

func NewMarketHandler(market MarketUsecase, l *applogger.Logger) *MarketHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &MarketHandler{market: market, l: l.Named("api.market"), now: time.Now}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/market")
	g.GET("/:symbol", h.Snapshot)
	g.GET("/:symbol/history", h.History)
}

func (h *MarketHandler) Snapshot(c echo.Context) error {
	req := &models.FusionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.market.Snapshot(c.Request().Context(), util.NormalizeSymbol(req.Symbol))
	if err != nil {
		return errorResponse(c, h.l, "market snapshot", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

// History defaults to the last 24 hours.
func (h *MarketHandler) History(c echo.Context) error {
	req := &models.MarketHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := h.now().UTC()
	to := util.ParseTimeDefault(req.To, now)
	from := util.ParseTimeDefault(req.From, to.Add(-24*time.Hour))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	rows, err := h.market.History(c.Request().Context(), util.NormalizeSymbol(req.Symbol), from, to, req.Limit)
	if err != nil {
		return errorResponse(c, h.l, "market history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
