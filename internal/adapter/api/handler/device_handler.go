package handler

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/adapter/api/middleware"
	"oysloe/internal/usecase"
	"oysloe/pkg/response"
)

type DeviceHandler struct {
	deviceUseCase *usecase.DeviceUseCase
}

func NewDeviceHandler(deviceUseCase *usecase.DeviceUseCase) *DeviceHandler {
	return &DeviceHandler{deviceUseCase: deviceUseCase}
}

type saveTokenRequest struct {
	Token string `json:"token" validate:"required"`
	// Defaults to true: the app declares this device as the user's only one.
	ReplaceOtherTokens *bool `json:"replace_other_tokens"`
}

func (h *DeviceHandler) SaveToken(c echo.Context) error {
	var req saveTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	replace := true
	if req.ReplaceOtherTokens != nil {
		replace = *req.ReplaceOtherTokens
	}

	device, err := h.deviceUseCase.Register(c.Request().Context(), middleware.UserID(c), req.Token, replace)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, device)
}

func (h *DeviceHandler) ListDevices(c echo.Context) error {
	devices, err := h.deviceUseCase.List(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, devices)
}

func (h *DeviceHandler) DeleteDevice(c echo.Context) error {
	token := c.Param("token")
	if err := h.deviceUseCase.Delete(c.Request().Context(), middleware.UserID(c), token); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"token": token, "deleted": true})
}
