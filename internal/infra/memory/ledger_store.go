package memory

import (
	"context"
	"sync"

	"trivia-progression-service/internal/domain"
)

type answerKey struct {
	userID string
	day    domain.Day
}

// LedgerStore is an in-memory implementation of app.AnswerStore and
// app.AssignmentStore. The map key plays the role of the storage-level
// uniqueness constraint.
type LedgerStore struct {
	mu          sync.RWMutex
	answers     map[answerKey]domain.Answer
	assignments map[domain.Day]string
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		answers:     make(map[answerKey]domain.Answer),
		assignments: make(map[domain.Day]string),
	}
}

func (s *LedgerStore) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{userID: answer.UserID, day: answer.Day}
	if _, exists := s.answers[key]; exists {
		return domain.ErrAlreadyAnswered
	}
	s.answers[key] = answer
	return nil
}

func (s *LedgerStore) AnswerFor(_ context.Context, userID string, day domain.Day) (domain.Answer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := s.answers[answerKey{userID: userID, day: day}]
	return answer, ok, nil
}

func (s *LedgerStore) CountCorrect(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key, answer := range s.answers {
		if key.userID == userID && answer.Correct {
			count++
		}
	}
	return count, nil
}

func (s *LedgerStore) Standings(_ context.Context) ([]domain.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[string]*domain.Standing)
	firstAnswer := make(map[string]domain.Answer)
	for _, answer := range s.answers {
		st, ok := byUser[answer.UserID]
		if !ok {
			st = &domain.Standing{UserID: answer.UserID}
			byUser[answer.UserID] = st
		}
		if answer.AnsweredAt.After(st.LastAnswerAt) {
			st.LastAnswerAt = answer.AnsweredAt
		}
		if first, ok := firstAnswer[answer.UserID]; !ok || answer.AnsweredAt.Before(first.AnsweredAt) {
			firstAnswer[answer.UserID] = answer
		}
		if answer.Correct {
			st.Points++
			if answer.AnsweredAt.After(st.ReachedAt) {
				st.ReachedAt = answer.AnsweredAt
			}
		}
	}

	out := make([]domain.Standing, 0, len(byUser))
	for userID, st := range byUser {
		if st.Points == 0 {
			st.ReachedAt = firstAnswer[userID].AnsweredAt
		}
		out = append(out, *st)
	}
	return out, nil
}

func (s *LedgerStore) Assignment(_ context.Context, day domain.Day) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questionID, ok := s.assignments[day]
	return questionID, ok, nil
}

func (s *LedgerStore) AssignIfAbsent(_ context.Context, day domain.Day, questionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.assignments[day]; ok {
		return existing, nil
	}
	s.assignments[day] = questionID
	return questionID, nil
}
