package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kakitori/kakitori-api/internal/core/ports"
)

type ProgressHandler struct {
	service ports.ProgressService
}

func NewProgressHandler(service ports.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Get returns the caller's completion per character category.
//
// @Summary      Get practice progress
// @Tags         progress
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response{data=[]domain.CategoryProgress}
// @Failure      401  {object}  Response
// @Router       /progress [get]
func (h *ProgressHandler) Get(c echo.Context) error {
	uid, err := ctxUID(c)
	if err != nil {
		return err
	}

	progress, err := h.service.Progress(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", progress)
}
