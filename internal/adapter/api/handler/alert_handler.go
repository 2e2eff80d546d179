package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/middleware"
	"oysloe/internal/usecase"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/response"
	"oysloe/pkg/utils"
)

type AlertHandler struct {
	alertUseCase *usecase.AlertUseCase
}

func NewAlertHandler(alertUseCase *usecase.AlertUseCase) *AlertHandler {
	return &AlertHandler{alertUseCase: alertUseCase}
}

type createAlertRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Title  string `json:"title" validate:"required,max=200"`
	Body   string `json:"body"`
	Kind   string `json:"kind" validate:"omitempty,max=50"`
}

func alertID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.InvalidRequest("invalid alert id", err)
	}
	return id, nil
}

func (h *AlertHandler) ListAlerts(c echo.Context) error {
	page := utils.GetPaginationParams(c, 20)
	alerts, total, err := h.alertUseCase.List(c.Request().Context(), middleware.UserID(c), page.Limit, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, alerts, total, page.Limit, page.Offset)
}

func (h *AlertHandler) MarkAllRead(c echo.Context) error {
	n, err := h.alertUseCase.MarkAllRead(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"updated": n})
}

func (h *AlertHandler) MarkRead(c echo.Context) error {
	id, err := alertID(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.alertUseCase.MarkRead(c.Request().Context(), middleware.UserID(c), id); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"id": id, "is_read": true})
}

func (h *AlertHandler) DeleteAlert(c echo.Context) error {
	id, err := alertID(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.alertUseCase.Delete(c.Request().Context(), middleware.UserID(c), id); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"id": id, "deleted": true})
}

// CreateAlert is the staff endpoint for targeting one user.
func (h *AlertHandler) CreateAlert(c echo.Context) error {
	var req createAlertRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	alert, err := h.alertUseCase.CreateAlert(c.Request().Context(), usecase.CreateAlertInput{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Kind:   req.Kind,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, alert)
}
