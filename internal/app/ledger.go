package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trivia-progression-service/internal/domain"
)

// Ledger records at most one answer per user and day.
type Ledger struct {
	selector *Selector
	answers  AnswerStore
	events   *EventBus
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

func NewLedger(selector *Selector, answers AnswerStore, events *EventBus, now func() time.Time, newID func() string, logger *slog.Logger) *Ledger {
	return &Ledger{
		selector: selector,
		answers:  answers,
		events:   events,
		now:      now,
		newID:    newID,
		logger:   logger,
	}
}

// Submit validates and records a user's answer for day. The first submission
// wins; later ones fail with domain.ErrAlreadyAnswered. Storage failures fail
// closed with domain.ErrStoreUnavailable.
func (l *Ledger) Submit(ctx context.Context, userID string, day domain.Day, choice int) (domain.AnswerResult, error) {
	if userID == "" {
		return domain.AnswerResult{}, domain.ErrMissingUser
	}
	now := l.now()
	if today := domain.DayOf(now); day != today {
		return domain.AnswerResult{}, fmt.Errorf("%w: got %s, today is %s", domain.ErrWrongDay, day, today)
	}

	question, err := l.selector.QuestionOfDay(ctx, day)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !question.ValidChoice(choice) {
		return domain.AnswerResult{}, fmt.Errorf("%w: %d not in [0, %d)", domain.ErrInvalidChoice, choice, len(question.Options))
	}

	// Fast path only; the insert below is what enforces uniqueness.
	_, found, err := l.answers.AnswerFor(ctx, userID, day)
	if err != nil {
		l.logger.Error("answer lookup failed", "user_id", userID, "day", day, "err", err)
		return domain.AnswerResult{}, fmt.Errorf("%w: lookup answer: %w", domain.ErrStoreUnavailable, err)
	}
	if found {
		l.logger.Debug("duplicate submission", "user_id", userID, "day", day)
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	if err := ctx.Err(); err != nil {
		return domain.AnswerResult{}, err
	}

	answer := domain.Answer{
		ID:          l.newID(),
		UserID:      userID,
		QuestionID:  question.ID,
		ChosenIndex: choice,
		Correct:     choice == question.CorrectIndex,
		Day:         day,
		AnsweredAt:  now,
	}
	if err := l.answers.InsertAnswer(ctx, answer); err != nil {
		if errors.Is(err, domain.ErrAlreadyAnswered) {
			l.logger.Debug("concurrent duplicate submission", "user_id", userID, "day", day)
			return domain.AnswerResult{}, domain.ErrAlreadyAnswered
		}
		l.logger.Error("answer insert failed", "user_id", userID, "day", day, "err", err)
		return domain.AnswerResult{}, fmt.Errorf("%w: insert answer: %w", domain.ErrStoreUnavailable, err)
	}

	l.events.PublishAnswerRecorded(ctx, domain.AnswerRecorded{
		UserID:     userID,
		Day:        day,
		QuestionID: question.ID,
		Correct:    answer.Correct,
		At:         now,
	})

	return domain.AnswerResult{
		AnswerID:   answer.ID,
		QuestionID: question.ID,
		Day:        day,
		Correct:    answer.Correct,
	}, nil
}

// DailyState reports whether userID has answered on day.
func (l *Ledger) DailyState(ctx context.Context, userID string, day domain.Day) (domain.DailyState, error) {
	if userID == "" {
		return domain.DailyState{}, domain.ErrMissingUser
	}
	answer, found, err := l.answers.AnswerFor(ctx, userID, day)
	if err != nil {
		return domain.DailyState{}, err
	}
	if !found {
		return domain.DailyState{Day: day, Status: domain.NoAnswerToday}, nil
	}
	correct := answer.Correct
	return domain.DailyState{Day: day, Status: domain.AnsweredToday, Correct: &correct}, nil
}
