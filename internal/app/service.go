package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"trivia-progression-service/internal/domain"
)

// Deps are the adapters the service is built from.
type Deps struct {
	Catalog     QuestionCatalog
	Assignments AssignmentStore
	Answers     AnswerStore
	Rewards     RewardStore
	Profiles    ProfileStore
	PointsCache PointsCache // optional
	Leaderboard RankerOptions
	Clock       func() time.Time // defaults to time.Now
	NewID       func() string    // defaults to uuid.NewString
	Logger      *slog.Logger     // defaults to slog.Default
}

// Service exposes the progression use cases.
type Service struct {
	now      func() time.Time
	selector *Selector
	ledger   *Ledger
	points   *Points
	rewards  *Rewards
	ranker   *Ranker
	profiles *Profiles
	tracer   trace.Tracer
}

func NewService(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := NewEventBus()
	selector := NewSelector(deps.Catalog, deps.Assignments, logger.With("component", "selector"))
	points := NewPoints(deps.Answers, deps.PointsCache, logger.With("component", "points"))
	rewards := NewRewards(deps.Rewards, points, deps.Clock, logger.With("component", "rewards"))
	ranker := NewRanker(deps.Answers, deps.Profiles, deps.Rewards, deps.Leaderboard, deps.Clock, logger.With("component", "leaderboard"))
	ledger := NewLedger(selector, deps.Answers, events, deps.Clock, deps.NewID, logger.With("component", "ledger"))

	// Points first: the reward handler reads the refreshed score.
	events.OnAnswerRecorded(points.handleAnswerRecorded)
	events.OnAnswerRecorded(ranker.handleAnswerRecorded)
	events.OnAnswerRecorded(rewards.handleAnswerRecorded)

	return &Service{
		now:      deps.Clock,
		selector: selector,
		ledger:   ledger,
		points:   points,
		rewards:  rewards,
		ranker:   ranker,
		profiles: NewProfiles(deps.Profiles, deps.Clock),
		tracer:   otel.Tracer("trivia-service"),
	}
}

// Today is the service-wide UTC calendar day.
func (s *Service) Today() domain.Day {
	return domain.DayOf(s.now())
}

func (s *Service) GetQuestionOfDay(ctx context.Context, day domain.Day) (q domain.Question, err error) {
	ctx, span := s.start(ctx, "GetQuestionOfDay", attribute.String("day", day.String()))
	defer func() { finish(span, err) }()
	return s.selector.QuestionOfDay(ctx, day)
}

// SubmitAnswer records the user's answer and returns the outcome with the
// user's updated point total.
func (s *Service) SubmitAnswer(ctx context.Context, userID string, day domain.Day, choice int) (res domain.AnswerResult, err error) {
	ctx, span := s.start(ctx, "SubmitAnswer",
		attribute.String("user.id", userID),
		attribute.String("day", day.String()),
		attribute.Int("choice", choice),
	)
	defer func() { finish(span, err) }()

	res, err = s.ledger.Submit(ctx, userID, day, choice)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	// The answer is committed; a failed total read only leaves Points unset.
	if points, perr := s.points.PointsOf(ctx, userID); perr == nil {
		res.Points = points
	} else {
		span.RecordError(perr)
	}
	span.SetAttributes(attribute.Bool("answer.correct", res.Correct))
	return res, nil
}

func (s *Service) GetDailyState(ctx context.Context, userID string) (state domain.DailyState, err error) {
	ctx, span := s.start(ctx, "GetDailyState", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.ledger.DailyState(ctx, userID, s.Today())
}

func (s *Service) GetPoints(ctx context.Context, userID string) (points int, err error) {
	ctx, span := s.start(ctx, "GetPoints", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.points.PointsOf(ctx, userID)
}

func (s *Service) GetRewardCatalog(ctx context.Context) (items []domain.RewardItem, err error) {
	ctx, span := s.start(ctx, "GetRewardCatalog")
	defer func() { finish(span, err) }()
	return s.rewards.Catalog(ctx)
}

func (s *Service) GetUnlockedRewards(ctx context.Context, userID string) (items []domain.RewardItem, err error) {
	ctx, span := s.start(ctx, "GetUnlockedRewards", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.rewards.Unlocked(ctx, userID)
}

func (s *Service) SelectReward(ctx context.Context, userID, itemID string) (sel domain.Selection, err error) {
	ctx, span := s.start(ctx, "SelectReward", attribute.String("user.id", userID), attribute.String("reward.id", itemID))
	defer func() { finish(span, err) }()
	return s.rewards.SelectCurrent(ctx, userID, itemID)
}

func (s *Service) GetCurrentReward(ctx context.Context, userID string) (sel domain.Selection, err error) {
	ctx, span := s.start(ctx, "GetCurrentReward", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.rewards.Current(ctx, userID)
}

func (s *Service) GetClaimHistory(ctx context.Context, userID string) (records []domain.UnlockRecord, err error) {
	ctx, span := s.start(ctx, "GetClaimHistory", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.rewards.ClaimHistory(ctx, userID)
}

func (s *Service) GetLeaderboard(ctx context.Context, limit int) (lb domain.Leaderboard, err error) {
	ctx, span := s.start(ctx, "GetLeaderboard", attribute.Int("limit", limit))
	defer func() { finish(span, err) }()
	return s.ranker.TopN(ctx, limit)
}

func (s *Service) GetRank(ctx context.Context, userID string) (rank int, err error) {
	ctx, span := s.start(ctx, "GetRank", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.ranker.RankOf(ctx, userID)
}

func (s *Service) SetDisplayName(ctx context.Context, userID, name string) (stored string, err error) {
	ctx, span := s.start(ctx, "SetDisplayName", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.profiles.SetDisplayName(ctx, userID, name)
}

func (s *Service) GetDisplayName(ctx context.Context, userID string) (name string, err error) {
	ctx, span := s.start(ctx, "GetDisplayName", attribute.String("user.id", userID))
	defer func() { finish(span, err) }()
	return s.profiles.DisplayName(ctx, userID)
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish ends span, marking it failed unless err is an expected outcome.
func finish(span trace.Span, err error) {
	if err != nil && !isExpected(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isExpected(err error) bool {
	for _, target := range []error{
		domain.ErrAlreadyAnswered,
		domain.ErrNotConfigured,
		domain.ErrInvalidChoice,
		domain.ErrLocked,
		domain.ErrNotFound,
		domain.ErrNotRanked,
		domain.ErrWrongDay,
		domain.ErrMissingUser,
		domain.ErrInvalidName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
