package memory

import (
	"context"
	"sync"
	"time"
)

// ProfileStore keeps display names in memory.
type ProfileStore struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{names: make(map[string]string)}
}

func (s *ProfileStore) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(userIDs))
	for _, userID := range userIDs {
		if name, ok := s.names[userID]; ok {
			out[userID] = name
		}
	}
	return out, nil
}

func (s *ProfileStore) SetDisplayName(_ context.Context, userID, name string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
	return nil
}
