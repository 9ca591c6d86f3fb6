package http

import (
	"strings"
	"time"

	xutil "FinFusion/pkg/util"

	"github.com/labstack/echo/v4"
)

// QueryTimeDefault reads a time query parameter or returns def.
func QueryTimeDefault(c echo.Context, name string, def time.Time) time.Time {
	return xutil.ParseTimeDefault(c.QueryParam(name), def)
}

// QueryIntDefault reads an integer query parameter or returns def.
func QueryIntDefault(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}

// ClientIP returns the caller address used for per-client limits.
func ClientIP(c echo.Context) string {
	ip := strings.TrimSpace(c.RealIP())
	if ip == "" {
		return "unknown"
	}
	return ip
}
