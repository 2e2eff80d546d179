package repository

import (
	"database/sql"
	"errors"

	"oysloe/internal/domain/repository"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// mapPgError turns driver errors into repository sentinels by constraint name.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case "chat_rooms_private_pair_key":
			return repository.ErrDuplicatePair
		case "chat_rooms_room_id_key", "chat_rooms_name_key":
			return repository.ErrDuplicateRoom
		}
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
