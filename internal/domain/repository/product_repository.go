package repository

import (
	"context"

	"oysloe/internal/domain/entity"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	GetByPID(ctx context.Context, pid string) (*entity.Product, error)
}
