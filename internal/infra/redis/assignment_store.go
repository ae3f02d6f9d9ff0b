package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"trivia-progression-service/internal/app"
	"trivia-progression-service/internal/domain"
)

// AssignmentStore keeps the day → question mapping under trivia:day:<day>.
// With a backing store the database stays authoritative and Redis only
// caches the winner; without one, SETNX decides the winner.
type AssignmentStore struct {
	client  *redis.Client
	backing app.AssignmentStore
}

func NewAssignmentStore(client *redis.Client, backing app.AssignmentStore) *AssignmentStore {
	return &AssignmentStore{client: client, backing: backing}
}

func (s *AssignmentStore) Assignment(ctx context.Context, day domain.Day) (string, bool, error) {
	questionID, err := s.client.Get(ctx, s.key(day)).Result()
	switch {
	case err == nil:
		return questionID, true, nil
	case !errors.Is(err, redis.Nil) && s.backing == nil:
		return "", false, fmt.Errorf("get assignment: %w", err)
	case s.backing == nil:
		return "", false, nil
	}

	questionID, ok, err := s.backing.Assignment(ctx, day)
	if err != nil || !ok {
		return "", ok, err
	}
	_ = s.client.SetNX(ctx, s.key(day), questionID, 0).Err()
	return questionID, true, nil
}

func (s *AssignmentStore) AssignIfAbsent(ctx context.Context, day domain.Day, questionID string) (string, error) {
	if s.backing != nil {
		winner, err := s.backing.AssignIfAbsent(ctx, day, questionID)
		if err != nil {
			return "", err
		}
		_ = s.client.Set(ctx, s.key(day), winner, 0).Err()
		return winner, nil
	}

	set, err := s.client.SetNX(ctx, s.key(day), questionID, 0).Result()
	if err != nil {
		return "", fmt.Errorf("assign day: %w", err)
	}
	if set {
		return questionID, nil
	}
	winner, err := s.client.Get(ctx, s.key(day)).Result()
	if err != nil {
		return "", fmt.Errorf("read assignment: %w", err)
	}
	return winner, nil
}

func (s *AssignmentStore) key(day domain.Day) string {
	return "trivia:day:" + string(day)
}
