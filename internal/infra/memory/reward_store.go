package memory

import (
	"context"
	"fmt"
	"sync"

	"trivia-progression-service/internal/domain"
)

type unlockKey struct {
	userID string
	itemID string
}

// RewardStore is an in-memory implementation of app.RewardStore.
type RewardStore struct {
	mu         sync.RWMutex
	items      map[string]domain.RewardItem
	unlocks    map[unlockKey]domain.UnlockRecord
	selections map[string]domain.Selection
}

func NewRewardStore(items []domain.RewardItem) *RewardStore {
	s := &RewardStore{
		items:      make(map[string]domain.RewardItem, len(items)),
		unlocks:    make(map[unlockKey]domain.UnlockRecord),
		selections: make(map[string]domain.Selection),
	}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *RewardStore) Rewards(_ context.Context) ([]domain.RewardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RewardItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, nil
}

func (s *RewardStore) Reward(_ context.Context, id string) (domain.RewardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return domain.RewardItem{}, fmt.Errorf("reward %s: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (s *RewardStore) RecordUnlock(_ context.Context, record domain.UnlockRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := unlockKey{userID: record.UserID, itemID: record.ItemID}
	if _, ok := s.unlocks[key]; ok {
		return false, nil
	}
	s.unlocks[key] = record
	return true, nil
}

func (s *RewardStore) Unlocks(_ context.Context, userID string) ([]domain.UnlockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UnlockRecord
	for key, record := range s.unlocks {
		if key.userID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *RewardStore) ReplaceSelection(_ context.Context, selection domain.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[selection.UserID] = selection
	return nil
}

func (s *RewardStore) Selection(_ context.Context, userID string) (domain.Selection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	selection, ok := s.selections[userID]
	return selection, ok, nil
}

func (s *RewardStore) Selections(_ context.Context, userIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(userIDs))
	for _, userID := range userIDs {
		if selection, ok := s.selections[userID]; ok {
			out[userID] = selection.ItemID
		}
	}
	return out, nil
}
