package app

import (
	"context"
	"time"

	"trivia-progression-service/internal/domain"
)

// QuestionCatalog loads published questions (from cache/backing store).
type QuestionCatalog interface {
	// Questions returns every published question ordered by ID.
	Questions(ctx context.Context) ([]domain.Question, error)
	// Question returns domain.ErrNotFound for unknown ids.
	Question(ctx context.Context, id string) (domain.Question, error)
}

// AssignmentStore memoizes the day → question mapping.
type AssignmentStore interface {
	Assignment(ctx context.Context, day domain.Day) (questionID string, ok bool, err error)
	// AssignIfAbsent stores questionID for day unless the day is already
	// assigned, and returns whichever id is stored afterwards.
	AssignIfAbsent(ctx context.Context, day domain.Day, questionID string) (string, error)
}

// AnswerStore is the append-only answer ledger.
type AnswerStore interface {
	// InsertAnswer must be atomic and return domain.ErrAlreadyAnswered when a
	// row for (UserID, Day) already exists.
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	AnswerFor(ctx context.Context, userID string, day domain.Day) (domain.Answer, bool, error)
	CountCorrect(ctx context.Context, userID string) (int, error)
	// Standings aggregates every user with at least one answer.
	Standings(ctx context.Context) ([]domain.Standing, error)
}

// PointsCache is an optional read-through cache in front of CountCorrect.
type PointsCache interface {
	Get(ctx context.Context, userID string) (int, bool, error)
	// Add stores points only if no value is cached for userID.
	Add(ctx context.Context, userID string, points int) error
	// Set overwrites the cached value.
	Set(ctx context.Context, userID string, points int) error
	Invalidate(ctx context.Context, userID string) error
}

// RewardStore holds reward items, unlock records and active selections.
type RewardStore interface {
	Rewards(ctx context.Context) ([]domain.RewardItem, error)
	Reward(ctx context.Context, id string) (domain.RewardItem, error)
	// RecordUnlock inserts the record unless (UserID, ItemID) exists and
	// reports whether a row was written.
	RecordUnlock(ctx context.Context, record domain.UnlockRecord) (bool, error)
	Unlocks(ctx context.Context, userID string) ([]domain.UnlockRecord, error)
	// ReplaceSelection atomically upserts the user's single active selection.
	ReplaceSelection(ctx context.Context, selection domain.Selection) error
	Selection(ctx context.Context, userID string) (domain.Selection, bool, error)
	Selections(ctx context.Context, userIDs []string) (map[string]string, error)
}

// ProfileStore keeps display names sourced outside the progression core.
type ProfileStore interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
	SetDisplayName(ctx context.Context, userID, name string, at time.Time) error
}
