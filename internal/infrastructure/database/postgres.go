package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"oysloe/pkg/config"
	"oysloe/pkg/logger"

	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool, verifies it and applies the schema.
func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the chat tables if they are missing. users and products belong to
// other services; minimal versions are created so a fresh database is usable. Chat
// tables hold user and product ids without foreign keys because the directory may
// live in Firestore.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		preferred_notification_phone TEXT NOT NULL DEFAULT '',
		preferred_notification_email TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		pid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		owner_id TEXT REFERENCES users(id) ON DELETE SET NULL
	)`,

	`CREATE TABLE IF NOT EXISTS chat_rooms (
		id BIGSERIAL PRIMARY KEY,
		room_id TEXT NOT NULL,
		name TEXT NOT NULL,
		is_group BOOLEAN NOT NULL DEFAULT FALSE,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		product_id TEXT,
		pair_key TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		CONSTRAINT chat_rooms_room_id_key UNIQUE (room_id),
		CONSTRAINT chat_rooms_name_key UNIQUE (name)
	)`,

	// Ground truth for one live private room per pair (and product, when scoped).
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_private_pair_key
		ON chat_rooms (pair_key) WHERE NOT is_deleted AND NOT is_group`,
	`CREATE INDEX IF NOT EXISTS chat_rooms_is_closed_idx ON chat_rooms (is_closed)`,
	`CREATE INDEX IF NOT EXISTS chat_rooms_is_deleted_idx ON chat_rooms (is_deleted)`,

	`CREATE TABLE IF NOT EXISTS chat_room_members (
		room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS chat_room_members_user_idx ON chat_room_members (user_id)`,

	`CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGSERIAL PRIMARY KEY,
		room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		is_media BOOLEAN NOT NULL DEFAULT FALSE,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_room_order_idx ON chat_messages (room_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_unread_idx ON chat_messages (room_id) WHERE NOT is_read`,

	`CREATE TABLE IF NOT EXISTS fcm_devices (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS fcm_devices_user_idx ON fcm_devices (user_id)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'GENERAL',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_user_idx ON alerts (user_id, created_at DESC)`,

	// Databases created before the directory became pluggable carry these.
	`ALTER TABLE chat_rooms DROP CONSTRAINT IF EXISTS chat_rooms_product_id_fkey`,
	`ALTER TABLE chat_room_members DROP CONSTRAINT IF EXISTS chat_room_members_user_id_fkey`,
	`ALTER TABLE chat_messages DROP CONSTRAINT IF EXISTS chat_messages_sender_id_fkey`,
	`ALTER TABLE fcm_devices DROP CONSTRAINT IF EXISTS fcm_devices_user_id_fkey`,
	`ALTER TABLE alerts DROP CONSTRAINT IF EXISTS alerts_user_id_fkey`,
}
