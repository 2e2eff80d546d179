package repository

import (
	"context"

	"oysloe/internal/domain/entity"
)

type AlertRepository interface {
	Create(ctx context.Context, alert *entity.Alert) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Alert, int64, error)
	MarkRead(ctx context.Context, userID string, id int64) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string, id int64) error
}
