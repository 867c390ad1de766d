package handler

import "github.com/labstack/echo/v4"

const (
	statusSuccess = "success"
	statusFail    = "fail"
)

// Response is the envelope every endpoint replies with.
type Response struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, Response{Status: statusSuccess, Message: message, Data: data})
}

// Fail renders a fail envelope. The central error handler uses it as well.
func Fail(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{Status: statusFail, Message: message})
}
