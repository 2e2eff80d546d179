package usecase

import (
	"context"
	"errors"
	"strings"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/logger"
)

type DeviceUseCase struct {
	deviceRepo repository.DeviceRepository
}

func NewDeviceUseCase(deviceRepo repository.DeviceRepository) *DeviceUseCase {
	return &DeviceUseCase{deviceRepo: deviceRepo}
}

// Register saves token for userID, taking it over from another user if needed.
// With replaceOthers the user's other tokens are dropped.
func (uc *DeviceUseCase) Register(ctx context.Context, userID, token string, replaceOthers bool) (*entity.FCMDevice, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.InvalidRequest("token is required", nil)
	}

	device, err := uc.deviceRepo.Upsert(ctx, userID, token)
	if err != nil {
		return nil, apperrors.Internal("failed to save device token", err)
	}

	if replaceOthers {
		n, err := uc.deviceRepo.DeleteOthers(ctx, userID, token)
		if err != nil {
			return nil, apperrors.Internal("failed to replace device tokens", err)
		}
		if n > 0 {
			logger.Debug("Removed %d older tokens for %s", n, userID)
		}
	}
	return device, nil
}

func (uc *DeviceUseCase) List(ctx context.Context, userID string) ([]*entity.FCMDevice, error) {
	devices, err := uc.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list devices", err)
	}
	if devices == nil {
		devices = []*entity.FCMDevice{}
	}
	return devices, nil
}

// Delete removes token only when userID owns it.
func (uc *DeviceUseCase) Delete(ctx context.Context, userID, token string) error {
	err := uc.deviceRepo.DeleteToken(ctx, userID, token)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("device", err)
	}
	if err != nil {
		return apperrors.Internal("failed to delete device", err)
	}
	return nil
}
