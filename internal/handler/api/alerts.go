package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/domain/models"
	xhttp "FinFusion/pkg/http"
	applogger "FinFusion/pkg/logger"
)

// AlertUsecase is the alert surface served over HTTP.
type AlertUsecase interface {
	List(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error)
	Active(ctx context.Context, limit int) ([]*models.Alert, error)
	History(ctx context.Context, symbol string, limit int) ([]*models.Alert, error)
	Get(ctx context.Context, id string) (*models.Alert, error)
	CreateManual(ctx context.Context, req *models.CreateAlertRequest) (*models.Alert, error)
	UpdateStatus(ctx context.Context, id string, to models.AlertStatus) (*models.Alert, error)
}

type AlertsHandler struct {
	alerts AlertUsecase
	l      *applogger.Logger
}

func NewAlertsHandler(alerts AlertUsecase, l *applogger.Logger) *AlertsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &AlertsHandler{alerts: alerts, l: l.Named("api.alerts")}
}

func (h *AlertsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/alerts")
	g.GET("", h.List)
	g.GET("/active", h.Active)
	g.GET("/history/:symbol", h.History)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id/status", h.UpdateStatus)
}

func (h *AlertsHandler) List(c echo.Context) error {
	req := &models.ListAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.alerts.List(c.Request().Context(), models.AlertFilter{
		Status: models.AlertStatus(req.Status),
		Symbol: req.Symbol,
		Limit:  req.Limit,
	})
	if err != nil {
		return errorResponse(c, h.l, "list alerts", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *AlertsHandler) Active(c echo.Context) error {
	req := &models.ActiveAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.alerts.Active(c.Request().Context(), req.Limit)
	if err != nil {
		return errorResponse(c, h.l, "active alerts", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *AlertsHandler) History(c echo.Context) error {
	req := &models.AlertHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.alerts.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return errorResponse(c, h.l, "alert history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *AlertsHandler) Get(c echo.Context) error {
	a, err := h.alerts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, h.l, "get alert", err)
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *AlertsHandler) Create(c echo.Context) error {
	req := &models.CreateAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.alerts.CreateManual(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, h.l, "create alert", err)
	}
	return xhttp.CreatedResponse(c, a)
}

func (h *AlertsHandler) UpdateStatus(c echo.Context) error {
	req := &models.UpdateStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.alerts.UpdateStatus(c.Request().Context(), req.ID, models.AlertStatus(req.Status))
	if err != nil {
		return errorResponse(c, h.l, "update alert status", err)
	}
	return xhttp.SuccessResponse(c, a)
}
