package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kakitori/kakitori-api/internal/api/handler"
	"github.com/kakitori/kakitori-api/internal/core/domain"
)

const (
	imagePredictPath = "/predict"
	msgBodyTooLarge  = "Request body too large"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders the fail envelope: {"status": "fail", "message": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = handler.Fail(c, code, msg)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, body limit, etc.) and
	// the ones handlers build with a client-facing message.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusRequestEntityTooLarge {
			return he.Code, tooLargeMessage(c)
		}
		if he.Code >= http.StatusInternalServerError {
			logUnexpected(log, c, err)
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrEmailRegistered):
		return http.StatusBadRequest, "Email is already registered"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid email or password"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrTokenMissing):
		return http.StatusUnauthorized, "Token not provided"
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, handler.MsgPayloadTooLarge
	case errors.Is(err, domain.ErrUnknownCategory):
		return http.StatusBadRequest, "Unknown category"
	case errors.Is(err, domain.ErrInvalidImage), errors.Is(err, domain.ErrModelOutput):
		return http.StatusBadRequest, "An error occurred while making the prediction"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	}

	// Unexpected error: log the real cause, return a generic message.
	logUnexpected(log, c, err)
	return http.StatusInternalServerError, "Internal server error"
}

// tooLargeMessage keeps the image limit message for the image route and
// reports other oversized bodies neutrally.
func tooLargeMessage(c echo.Context) string {
	if c.Path() == imagePredictPath {
		return handler.MsgPayloadTooLarge
	}
	return msgBodyTooLarge
}

func logUnexpected(log zerolog.Logger, c echo.Context, err error) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")
}
