package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trivia-progression-service/internal/domain"
)

// Rewards gates cosmetic items behind point thresholds.
type Rewards struct {
	store  RewardStore
	points *Points
	now    func() time.Time
	logger *slog.Logger
}

func NewRewards(store RewardStore, points *Points, now func() time.Time, logger *slog.Logger) *Rewards {
	return &Rewards{store: store, points: points, now: now, logger: logger}
}

// Catalog lists every reward ordered by threshold, then ID.
func (r *Rewards) Catalog(ctx context.Context) ([]domain.RewardItem, error) {
	items, err := r.store.Rewards(ctx)
	if err != nil {
		return nil, err
	}
	sortRewards(items)
	return items, nil
}

// Unlocked returns the items available to userID at the current score.
func (r *Rewards) Unlocked(ctx context.Context, userID string) ([]domain.RewardItem, error) {
	points, err := r.points.PointsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := r.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return unlockedAt(items, points), nil
}

// SelectCurrent makes itemID the user's single active reward.
func (r *Rewards) SelectCurrent(ctx context.Context, userID, itemID string) (domain.Selection, error) {
	if userID == "" {
		return domain.Selection{}, domain.ErrMissingUser
	}
	item, err := r.store.Reward(ctx, itemID)
	if err != nil {
		return domain.Selection{}, err
	}
	points, err := r.points.PointsOf(ctx, userID)
	if err != nil {
		return domain.Selection{}, err
	}
	if !item.UnlockedAt(points) {
		return domain.Selection{}, fmt.Errorf("%w: %s needs %d points, have %d", domain.ErrLocked, item.ID, item.RequiredPoints, points)
	}

	now := r.now()
	if _, err := r.store.RecordUnlock(ctx, domain.UnlockRecord{UserID: userID, ItemID: item.ID, UnlockedAt: now}); err != nil {
		return domain.Selection{}, fmt.Errorf("record unlock: %w", err)
	}
	selection := domain.Selection{UserID: userID, ItemID: item.ID, SelectedAt: now}
	if err := r.store.ReplaceSelection(ctx, selection); err != nil {
		return domain.Selection{}, fmt.Errorf("replace selection: %w", err)
	}
	r.logger.Info("reward selected", "user_id", userID, "item_id", item.ID)
	return selection, nil
}

// Current returns the active selection or domain.ErrNotFound.
func (r *Rewards) Current(ctx context.Context, userID string) (domain.Selection, error) {
	if userID == "" {
		return domain.Selection{}, domain.ErrMissingUser
	}
	selection, ok, err := r.store.Selection(ctx, userID)
	if err != nil {
		return domain.Selection{}, err
	}
	if !ok {
		return domain.Selection{}, domain.ErrNotFound
	}
	return selection, nil
}

// ClaimHistory lists when each item first became eligible for userID.
func (r *Rewards) ClaimHistory(ctx context.Context, userID string) ([]domain.UnlockRecord, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	records, err := r.store.Unlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UnlockedAt.Equal(records[j].UnlockedAt) {
			return records[i].UnlockedAt.Before(records[j].UnlockedAt)
		}
		return records[i].ItemID < records[j].ItemID
	})
	return records, nil
}

// handleAnswerRecorded writes unlock records for items that became eligible.
// Recording is idempotent, so a failed pass is repaired by the next answer.
func (r *Rewards) handleAnswerRecorded(ctx context.Context, evt domain.AnswerRecorded) {
	unlocked, err := r.Unlocked(ctx, evt.UserID)
	if err != nil {
		r.logger.Warn("unlock evaluation failed", "user_id", evt.UserID, "err", err)
		return
	}
	for _, item := range unlocked {
		created, err := r.store.RecordUnlock(ctx, domain.UnlockRecord{UserID: evt.UserID, ItemID: item.ID, UnlockedAt: evt.At})
		if err != nil {
			r.logger.Warn("record unlock failed", "user_id", evt.UserID, "item_id", item.ID, "err", err)
			continue
		}
		if created {
			r.logger.Info("reward unlocked", "user_id", evt.UserID, "item_id", item.ID)
		}
	}
}

func unlockedAt(items []domain.RewardItem, points int) []domain.RewardItem {
	out := make([]domain.RewardItem, 0, len(items))
	for _, item := range items {
		if item.UnlockedAt(points) {
			out = append(out, item)
		}
	}
	return out
}

func sortRewards(items []domain.RewardItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RequiredPoints != items[j].RequiredPoints {
			return items[i].RequiredPoints < items[j].RequiredPoints
		}
		return items[i].ID < items[j].ID
	})
}
