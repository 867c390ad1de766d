package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kakitori/kakitori-api/internal/api/middleware"
	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// ctxUID returns the uid injected by RequireAuth. An empty uid means the
// route was mounted without the middleware.
func ctxUID(c echo.Context) (string, error) {
	uid := optionalUID(c)
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Token not provided").SetInternal(domain.ErrTokenMissing)
	}
	return uid, nil
}

// optionalUID returns the caller's uid, or "" for anonymous requests.
func optionalUID(c echo.Context) string {
	uid, _ := c.Get(middleware.ContextUID).(string)
	return uid
}
