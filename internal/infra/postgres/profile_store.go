package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ProfileStore keeps user display names.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT user_id, display_name FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load display names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID, name string
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("scan display name: %w", err)
		}
		out[userID] = name
	}
	return out, rows.Err()
}

func (s *ProfileStore) SetDisplayName(ctx context.Context, userID, name string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at`,
		userID, name, at,
	)
	if err != nil {
		return fmt.Errorf("set display name: %w", err)
	}
	return nil
}
