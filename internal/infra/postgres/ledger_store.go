package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-progression-service/internal/domain"
)

const (
	uniqueViolation   = "23505"
	answersUserDayKey = "answers_user_day_key"
)

// LedgerStore persists answers and day assignments. The answers table's
// unique (user_id, day) constraint is the source of truth for one answer per
// user per day.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

func (s *LedgerStore) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, user_id, question_id, chosen_index, correct, day, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		answer.ID, answer.UserID, answer.QuestionID, answer.ChosenIndex, answer.Correct, answer.Day.Time(), answer.AnsweredAt,
	)
	if isUniqueViolation(err, answersUserDayKey) {
		return domain.ErrAlreadyAnswered
	}
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *LedgerStore) AnswerFor(ctx context.Context, userID string, day domain.Day) (domain.Answer, bool, error) {
	var (
		answer    domain.Answer
		storedDay time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, user_id, question_id, chosen_index, correct, day, answered_at
		FROM answers WHERE user_id = $1 AND day = $2`,
		userID, day.Time(),
	).Scan(&answer.ID, &answer.UserID, &answer.QuestionID, &answer.ChosenIndex, &answer.Correct, &storedDay, &answer.AnsweredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("load answer: %w", err)
	}
	answer.Day = domain.DayOf(storedDay)
	return answer, true, nil
}

func (s *LedgerStore) CountCorrect(ctx context.Context, userID string) (int, error) {
	var points int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM answers WHERE user_id = $1 AND correct`, userID).Scan(&points)
	if err != nil {
		return 0, fmt.Errorf("count correct: %w", err)
	}
	return points, nil
}

// Standings aggregates one row per user. ReachedAt is the latest correct
// answer, or the first answer for users without points.
func (s *LedgerStore) Standings(ctx context.Context) ([]domain.Standing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id,
		       count(*) FILTER (WHERE correct),
		       coalesce(max(answered_at) FILTER (WHERE correct), min(answered_at)),
		       max(answered_at)
		FROM answers
		GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("load standings: %w", err)
	}
	defer rows.Close()

	var standings []domain.Standing
	for rows.Next() {
		var st domain.Standing
		if err := rows.Scan(&st.UserID, &st.Points, &st.ReachedAt, &st.LastAnswerAt); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

func (s *LedgerStore) Assignment(ctx context.Context, day domain.Day) (string, bool, error) {
	var questionID string
	err := s.pool.QueryRow(ctx, `SELECT question_id FROM daily_assignments WHERE day = $1`, day.Time()).Scan(&questionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load assignment: %w", err)
	}
	return questionID, true, nil
}

func (s *LedgerStore) AssignIfAbsent(ctx context.Context, day domain.Day, questionID string) (string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_assignments (day, question_id, assigned_at)
		VALUES ($1, $2, now())
		ON CONFLICT (day) DO NOTHING`,
		day.Time(), questionID,
	)
	if err != nil {
		return "", fmt.Errorf("assign day: %w", err)
	}
	winner, ok, err := s.Assignment(ctx, day)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("assignment for %s vanished", day)
	}
	return winner, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
