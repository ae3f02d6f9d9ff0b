package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-progression-service/internal/domain"
)

// RewardStore persists reward items, unlock history and active selections.
type RewardStore struct {
	pool *pgxpool.Pool
}

func NewRewardStore(pool *pgxpool.Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

func (s *RewardStore) Rewards(ctx context.Context) ([]domain.RewardItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, asset_ref, is_default, required_points
		FROM reward_items ORDER BY required_points, id`)
	if err != nil {
		return nil, fmt.Errorf("load rewards: %w", err)
	}
	defer rows.Close()

	var items []domain.RewardItem
	for rows.Next() {
		var item domain.RewardItem
		if err := rows.Scan(&item.ID, &item.Name, &item.AssetRef, &item.IsDefault, &item.RequiredPoints); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *RewardStore) Reward(ctx context.Context, id string) (domain.RewardItem, error) {
	var item domain.RewardItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, asset_ref, is_default, required_points
		FROM reward_items WHERE id = $1`, id,
	).Scan(&item.ID, &item.Name, &item.AssetRef, &item.IsDefault, &item.RequiredPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RewardItem{}, fmt.Errorf("reward %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RewardItem{}, fmt.Errorf("load reward: %w", err)
	}
	return item, nil
}

func (s *RewardStore) RecordUnlock(ctx context.Context, record domain.UnlockRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO unlock_records (user_id, item_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item_id) DO NOTHING`,
		record.UserID, record.ItemID, record.UnlockedAt,
	)
	if err != nil {
		return false, fmt.Errorf("record unlock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *RewardStore) Unlocks(ctx context.Context, userID string) ([]domain.UnlockRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, item_id, unlocked_at
		FROM unlock_records WHERE user_id = $1
		ORDER BY unlocked_at, item_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}
	defer rows.Close()

	var records []domain.UnlockRecord
	for rows.Next() {
		var rec domain.UnlockRecord
		if err := rows.Scan(&rec.UserID, &rec.ItemID, &rec.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *RewardStore) ReplaceSelection(ctx context.Context, selection domain.Selection) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO current_selections (user_id, item_id, selected_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET item_id = EXCLUDED.item_id, selected_at = EXCLUDED.selected_at`,
		selection.UserID, selection.ItemID, selection.SelectedAt,
	)
	if err != nil {
		return fmt.Errorf("replace selection: %w", err)
	}
	return nil
}

func (s *RewardStore) Selection(ctx context.Context, userID string) (domain.Selection, bool, error) {
	var sel domain.Selection
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, item_id, selected_at
		FROM current_selections WHERE user_id = $1`, userID,
	).Scan(&sel.UserID, &sel.ItemID, &sel.SelectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Selection{}, false, nil
	}
	if err != nil {
		return domain.Selection{}, false, fmt.Errorf("load selection: %w", err)
	}
	return sel, true, nil
}

func (s *RewardStore) Selections(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, item_id FROM current_selections WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID, itemID string
		if err := rows.Scan(&userID, &itemID); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		out[userID] = itemID
	}
	return out, rows.Err()
}
