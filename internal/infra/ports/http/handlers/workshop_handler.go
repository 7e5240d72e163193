package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/domain/models"
	"github.com/lectorium/workshop/internal/infra/appctx"
	"github.com/lectorium/workshop/internal/infra/ports/http/dto"
	"github.com/lectorium/workshop/internal/usecase"
)

type WorkshopHandler struct {
	workshopUsecase usecase.WorkshopUsecase
}

func NewWorkshopHandler(workshopUsecase usecase.WorkshopUsecase) *WorkshopHandler {
	return &WorkshopHandler{
		workshopUsecase: workshopUsecase,
	}
}

func (h *WorkshopHandler) Create(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	var req dto.CreateWorkshopRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	workshop, err := h.workshopUsecase.CreateWorkshop(c.Request().Context(), userID, req.Title, req.ScheduledAt)
	if err != nil {
		slog.Error("create workshop failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create workshop"})
	}

	return c.JSON(http.StatusCreated, toWorkshopResponse(workshop))
}

func (h *WorkshopHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workshop id"})
	}

	workshop, err := h.workshopUsecase.GetWorkshop(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workshop not found"})
	}

	return c.JSON(http.StatusOK, toWorkshopResponse(workshop))
}

func (h *WorkshopHandler) List(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	workshops, err := h.workshopUsecase.ListWorkshops(c.Request().Context(), userID)
	if err != nil {
		slog.Error("list workshops failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not list workshops"})
	}

	resp := make([]dto.WorkshopResponse, 0, len(workshops))
	for _, w := range workshops {
		resp = append(resp, toWorkshopResponse(w))
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *WorkshopHandler) Delete(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workshop id"})
	}

	workshop, err := h.workshopUsecase.GetWorkshop(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workshop not found"})
	}

	if workshop.HostID != userID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not the workshop host"})
	}

	if err := h.workshopUsecase.DeleteWorkshop(c.Request().Context(), id); err != nil {
		slog.Error("delete workshop failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not delete workshop"})
	}

	return c.NoContent(http.StatusNoContent)
}

func toWorkshopResponse(w *models.Workshop) dto.WorkshopResponse {
	return dto.WorkshopResponse{
		ID:          w.ID,
		HostID:      w.HostID,
		Title:       w.Title,
		ScheduledAt: w.ScheduledAt,
		CreatedAt:   w.CreatedAt,
	}
}
