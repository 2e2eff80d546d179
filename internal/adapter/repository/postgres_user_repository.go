package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"

	"github.com/lib/pq"
)

const userColumns = `id, email, name, phone, preferred_notification_phone, preferred_notification_email,
	avatar, is_active, is_staff`

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) repository.UserRepository {
	return &postgresUserRepository{db: db}
}

func scanUser(row rowScanner) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.PreferredNotificationPhone,
		&u.PreferredNotificationEmail, &u.Avatar, &u.IsActive, &u.IsStaff)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *postgresUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type postgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) repository.ProductRepository {
	return &postgresProductRepository{db: db}
}

func (r *postgresProductRepository) get(ctx context.Context, where string, arg string) (*entity.Product, error) {
	p := &entity.Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, pid, name, image, COALESCE(owner_id, '') FROM products WHERE `+where+` = $1`, arg,
	).Scan(&p.ID, &p.PID, &p.Name, &p.Image, &p.OwnerID)
	if err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

func (r *postgresProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.get(ctx, "id", id)
}

func (r *postgresProductRepository) GetByPID(ctx context.Context, pid string) (*entity.Product, error) {
	return r.get(ctx, "pid", pid)
}
