package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/domain/models"
	xhttp "FinFusion/pkg/http"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/util"
)

// FusionUsecase reads cached fusion scores.
type FusionUsecase interface {
	Cached(ctx context.Context, symbol string) (*models.FusionScore, error)
	CachedAll(ctx context.Context, symbols []string) (map[string]*models.FusionScore, error)
}

type FusionHandler struct {
	scores  FusionUsecase
	symbols []string
	l       *applogger.Logger
}

// NewFusionHandler serves scores; GET /api/fusion lists symbols.
func NewFusionHandler(scores FusionUsecase, symbols []string, l *applogger.Logger) *FusionHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &FusionHandler{scores: scores, symbols: symbols, l: l.Named("api.fusion")}
}

func (h *FusionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/fusion")
	g.GET("", h.All)
	g.GET("/:symbol", h.Get)
}

func (h *FusionHandler) Get(c echo.Context) error {
	req := &models.FusionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	score, err := h.scores.Cached(c.Request().Context(), util.NormalizeSymbol(req.Symbol))
	if err != nil {
		return errorResponse(c, h.l, "fusion score", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, score)
}

func (h *FusionHandler) All(c echo.Context) error {
	scores, err := h.scores.CachedAll(c.Request().Context(), h.symbols)
	if err != nil {
		return errorResponse(c, h.l, "fusion scores", err)
	}
	rows := make([]*models.FusionScore, 0, len(scores))
	for _, sym := range h.symbols {
		if s, ok := scores[sym]; ok {
			rows = append(rows, s)
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
