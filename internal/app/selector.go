package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
	"trivia-progression-service/internal/domain"
)

// Selector resolves the single question shared by all users on a day.
type Selector struct {
	catalog     QuestionCatalog
	assignments AssignmentStore
	logger      *slog.Logger
	sf          singleflight.Group

	mu   sync.RWMutex
	memo map[domain.Day]domain.Question
}

func NewSelector(catalog QuestionCatalog, assignments AssignmentStore, logger *slog.Logger) *Selector {
	return &Selector{
		catalog:     catalog,
		assignments: assignments,
		logger:      logger,
		memo:        make(map[domain.Day]domain.Question),
	}
}

// QuestionOfDay returns the question assigned to day, assigning one on first
// resolution. Once a day is assigned the mapping never changes.
func (s *Selector) QuestionOfDay(ctx context.Context, day domain.Day) (domain.Question, error) {
	s.mu.RLock()
	if q, ok := s.memo[day]; ok {
		s.mu.RUnlock()
		return q, nil
	}
	s.mu.RUnlock()

	// The resolution is shared by every caller waiting on day, so it must not
	// die with the first caller's context.
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(string(day), func() (interface{}, error) {
		q, err := s.resolve(shared, day)
		if err != nil {
			return domain.Question{}, err
		}
		s.mu.Lock()
		s.memo[day] = q
		s.mu.Unlock()
		return q, nil
	})
	select {
	case <-ctx.Done():
		return domain.Question{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Question{}, res.Err
		}
		return res.Val.(domain.Question), nil
	}
}

func (s *Selector) resolve(ctx context.Context, day domain.Day) (domain.Question, error) {
	questionID, ok, err := s.assignments.Assignment(ctx, day)
	if err != nil {
		return domain.Question{}, fmt.Errorf("load assignment %s: %w", day, err)
	}
	if !ok {
		questions, err := s.catalog.Questions(ctx)
		if err != nil {
			return domain.Question{}, fmt.Errorf("load catalog: %w", err)
		}
		if len(questions) == 0 {
			return domain.Question{}, domain.ErrNotConfigured
		}
		pick := pickForDay(day, questions)
		questionID, err = s.assignments.AssignIfAbsent(ctx, day, pick.ID)
		if err != nil {
			return domain.Question{}, fmt.Errorf("assign %s: %w", day, err)
		}
		if questionID == pick.ID {
			s.logger.Info("assigned question of the day", "day", day, "question_id", pick.ID)
			return pick, nil
		}
	}

	q, err := s.catalog.Question(ctx, questionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Question{}, fmt.Errorf("%w: assigned question %s is not in the catalog", domain.ErrNotConfigured, questionID)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question %s: %w", questionID, err)
	}
	return q, nil
}

// pickForDay hashes the day over the catalog ordered by question ID, so every
// instance computes the same candidate.
func pickForDay(day domain.Day, questions []domain.Question) domain.Question {
	sorted := make([]domain.Question, len(questions))
	copy(sorted, questions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := fnv.New64a()
	_, _ = h.Write([]byte(day))
	return sorted[h.Sum64()%uint64(len(sorted))]
}
