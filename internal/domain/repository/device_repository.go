package repository

import (
	"context"

	"oysloe/internal/domain/entity"
)

type DeviceRepository interface {
	// Upsert creates the token or moves it to userID. Tokens are never duplicated.
	Upsert(ctx context.Context, userID, token string) (*entity.FCMDevice, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.FCMDevice, error)
	DeleteOthers(ctx context.Context, userID, keepToken string) (int, error)
	DeleteToken(ctx context.Context, userID, token string) error
	// DeleteTokens drops tokens regardless of owner, used for provider-rejected tokens.
	DeleteTokens(ctx context.Context, tokens []string) error
}
