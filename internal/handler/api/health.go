package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/broadcast"
	"FinFusion/internal/domain/models"
	xhttp "FinFusion/pkg/http"
	applogger "FinFusion/pkg/logger"
)

type HealthChecker interface {
	Health(ctx context.Context) (*models.AlertHealth, error)
}

// StatsSource reports live fan-out state.
type StatsSource interface {
	Stats() broadcast.HubStats
}

type healthResponse struct {
	*models.AlertHealth
	Broadcast *broadcast.HubStats `json:"broadcast,omitempty"`
}

type HealthHandler struct {
	alerts HealthChecker
	hub    StatsSource
	l      *applogger.Logger
}

func NewHealthHandler(alerts HealthChecker, hub StatsSource, l *applogger.Logger) *HealthHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &HealthHandler{alerts: alerts, hub: hub, l: l.Named("api.health")}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/health", h.Health)
}

// Health answers 200 while healthy or degraded and 503 when the alert
// store cannot be read.
func (h *HealthHandler) Health(c echo.Context) error {
	res, err := h.alerts.Health(c.Request().Context())
	if err != nil {
		h.l.Warn("health check failed", applogger.Error(err))
	}
	if res == nil {
		res = &models.AlertHealth{Status: "unhealthy"}
	}
	body := healthResponse{AlertHealth: res}
	if h.hub != nil {
		st := h.hub.Stats()
		body.Broadcast = &st
	}
	if err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, body)
	}
	return xhttp.SuccessResponse(c, body)
}
