package app

import (
	"context"
	"log/slog"

	"trivia-progression-service/internal/domain"
)

// Points derives a user's score from the ledger.
type Points struct {
	answers AnswerStore
	cache   PointsCache
	logger  *slog.Logger
}

// NewPoints builds the aggregator; cache may be nil.
func NewPoints(answers AnswerStore, cache PointsCache, logger *slog.Logger) *Points {
	return &Points{answers: answers, cache: cache, logger: logger}
}

// PointsOf returns the number of correct answers recorded for userID.
func (p *Points) PointsOf(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingUser
	}
	if p.cache != nil {
		points, ok, err := p.cache.Get(ctx, userID)
		if err == nil && ok {
			return points, nil
		}
		if err != nil {
			p.logger.Warn("points cache read failed", "user_id", userID, "err", err)
		}
	}

	points, err := p.answers.CountCorrect(ctx, userID)
	if err != nil {
		return 0, err
	}

	// Add, not Set: a read that raced a new answer must not overwrite the
	// fresh value written by handleAnswerRecorded.
	if p.cache != nil {
		if err := p.cache.Add(ctx, userID, points); err != nil {
			p.logger.Warn("points cache write failed", "user_id", userID, "err", err)
		}
	}
	return points, nil
}

func (p *Points) handleAnswerRecorded(ctx context.Context, evt domain.AnswerRecorded) {
	if p.cache == nil {
		return
	}
	points, err := p.answers.CountCorrect(ctx, evt.UserID)
	if err == nil {
		err = p.cache.Set(ctx, evt.UserID, points)
	}
	if err == nil {
		return
	}
	p.logger.Warn("points cache refresh failed", "user_id", evt.UserID, "err", err)
	if err := p.cache.Invalidate(ctx, evt.UserID); err != nil {
		p.logger.Error("points cache invalidation failed", "user_id", evt.UserID, "err", err)
	}
}
