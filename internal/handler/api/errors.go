package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/domain"
	xhttp "FinFusion/pkg/http"
	applogger "FinFusion/pkg/logger"
)

// toAppError maps domain errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return xhttp.ConflictError("ERR_INVALID_TRANSITION", err.Error()).WithError(err)
	case errors.Is(err, domain.ErrInvalidAlert):
		return xhttp.InvalidFieldError("ERR_INVALID_ALERT", "", err.Error()).WithError(err)
	case errors.Is(err, domain.ErrPersistenceFailure):
		return xhttp.UnavailableError("ERR_PERSISTENCE", "alert could not be stored").WithError(err)
	}
	return nil
}

func errorResponse(c echo.Context, l *applogger.Logger, op string, err error) error {
	if appErr := toAppError(err); appErr != nil {
		if appErr.Status >= 500 {
			l.Error(op+" failed", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	l.Error(op+" failed", applogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}
