package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
)

type postgresAlertRepository struct {
	db *sql.DB
}

func NewPostgresAlertRepository(db *sql.DB) repository.AlertRepository {
	return &postgresAlertRepository{db: db}
}

func (r *postgresAlertRepository) Create(ctx context.Context, alert *entity.Alert) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO alerts (user_id, title, body, kind) VALUES ($1, $2, $3, $4) RETURNING id, is_read, created_at`,
		alert.UserID, alert.Title, alert.Body, alert.Kind,
	).Scan(&alert.ID, &alert.IsRead, &alert.CreatedAt)
	return mapPgError(err)
}

func (r *postgresAlertRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Alert, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, kind, is_read, created_at FROM alerts
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, lim, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*entity.Alert
	for rows.Next() {
		a := &entity.Alert{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Body, &a.Kind, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

func (r *postgresAlertRepository) MarkRead(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *postgresAlertRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark alerts read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *postgresAlertRepository) Delete(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
