package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"

	"github.com/lib/pq"
)

type postgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) repository.DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

// Upsert is a single statement so concurrent registrations of one token converge on the last writer.
func (r *postgresDeviceRepository) Upsert(ctx context.Context, userID, token string) (*entity.FCMDevice, error) {
	d := &entity.FCMDevice{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO fcm_devices (user_id, token) VALUES ($1, $2)
		 ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = NOW()
		 RETURNING id, user_id, token, created_at, updated_at`,
		userID, token,
	).Scan(&d.ID, &d.UserID, &d.Token, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return d, nil
}

func (r *postgresDeviceRepository) ListByUser(ctx context.Context, userID string) ([]*entity.FCMDevice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, token, created_at, updated_at FROM fcm_devices WHERE user_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*entity.FCMDevice
	for rows.Next() {
		d := &entity.FCMDevice{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Token, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *postgresDeviceRepository) DeleteOthers(ctx context.Context, userID, keepToken string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fcm_devices WHERE user_id = $1 AND token <> $2`, userID, keepToken)
	if err != nil {
		return 0, fmt.Errorf("delete devices: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *postgresDeviceRepository) DeleteToken(ctx context.Context, userID, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fcm_devices WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *postgresDeviceRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM fcm_devices WHERE token = ANY($1)`, pq.Array(tokens))
	return err
}
