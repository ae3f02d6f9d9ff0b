package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trivia-progression-service/internal/domain"
)

// RankerOptions tunes the leaderboard read model.
type RankerOptions struct {
	DefaultLimit int
	MaxLimit     int
	// MinPoints is the participation floor for TopN; users below it keep a
	// rank through RankOf.
	MinPoints   int
	SnapshotTTL time.Duration
	ReadTimeout time.Duration
}

func DefaultRankerOptions() RankerOptions {
	return RankerOptions{
		DefaultLimit: 50,
		MaxLimit:     200,
		MinPoints:    1,
		SnapshotTTL:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
	}
}

// Ranker orders users by points with a deterministic tie-break chain.
type Ranker struct {
	answers  AnswerStore
	profiles ProfileStore
	rewards  RewardStore
	opts     RankerOptions
	now      func() time.Time
	logger   *slog.Logger

	mu         sync.Mutex
	snap       *standingsSnapshot
	validUntil time.Time
	generation uint64
}

type standingsSnapshot struct {
	ordered []domain.Standing
	index   map[string]int
	takenAt time.Time
	// generation is the answer generation observed before the read began.
	generation uint64
}

func NewRanker(answers AnswerStore, profiles ProfileStore, rewards RewardStore, opts RankerOptions, now func() time.Time, logger *slog.Logger) *Ranker {
	defaults := DefaultRankerOptions()
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaults.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = defaults.MaxLimit
	}
	if opts.MinPoints < 0 {
		opts.MinPoints = 0
	}
	return &Ranker{
		answers:  answers,
		profiles: profiles,
		rewards:  rewards,
		opts:     opts,
		now:      now,
		logger:   logger,
	}
}

// TopN returns up to n ranked rows of users at or above the participation floor.
func (r *Ranker) TopN(ctx context.Context, n int) (domain.Leaderboard, error) {
	if n <= 0 {
		n = r.opts.DefaultLimit
	}
	if n > r.opts.MaxLimit {
		n = r.opts.MaxLimit
	}

	snap, err := r.standings(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	rows := make([]domain.LeaderboardRow, 0, n)
	for i, st := range snap.ordered {
		if len(rows) == n || st.Points < r.opts.MinPoints {
			break
		}
		rows = append(rows, domain.LeaderboardRow{
			Rank:         i + 1,
			UserID:       st.UserID,
			Points:       st.Points,
			LastAnswerAt: st.LastAnswerAt,
		})
	}
	r.decorate(ctx, rows)

	return domain.Leaderboard{Rows: rows, UpdatedAt: snap.takenAt}, nil
}

// RankOf returns the 1-based position of userID, or domain.ErrNotRanked when
// the user has no answers.
func (r *Ranker) RankOf(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingUser
	}
	snap, err := r.standings(ctx)
	if err != nil {
		return 0, err
	}
	idx, ok := snap.index[userID]
	if !ok {
		return 0, domain.ErrNotRanked
	}
	return idx + 1, nil
}

// decorate fills display names and active rewards. Profile data is not part
// of the ranking, so lookup failures only degrade the presentation.
func (r *Ranker) decorate(ctx context.Context, rows []domain.LeaderboardRow) {
	if len(rows) == 0 {
		return
	}
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].UserID
	}

	names, err := r.profiles.DisplayNames(ctx, ids)
	if err != nil {
		r.logger.Warn("display name lookup failed", "err", err)
	}
	selections, err := r.rewards.Selections(ctx, ids)
	if err != nil {
		r.logger.Warn("reward selection lookup failed", "err", err)
	}

	for i := range rows {
		name := names[rows[i].UserID]
		if name == "" {
			name = domain.DefaultDisplayName(rows[i].UserID)
		}
		rows[i].DisplayName = name
		rows[i].RewardID = selections[rows[i].UserID]
	}
}

// standings returns a fresh snapshot, or the previous one when the store is
// failing or slow.
func (r *Ranker) standings(ctx context.Context) (*standingsSnapshot, error) {
	r.mu.Lock()
	snap, validUntil, gen := r.snap, r.validUntil, r.generation
	r.mu.Unlock()

	now := r.now()
	if snap != nil && now.Before(validUntil) {
		return snap, nil
	}

	readCtx := ctx
	if r.opts.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, r.opts.ReadTimeout)
		defer cancel()
	}
	rows, err := r.answers.Standings(readCtx)
	if err != nil {
		if snap != nil {
			r.logger.Warn("serving stale leaderboard", "taken_at", snap.takenAt, "err", err)
			return snap, nil
		}
		return nil, err
	}

	fresh := buildSnapshot(rows, now, gen)
	r.mu.Lock()
	// A read that began before a newer one must not replace its result.
	if r.snap == nil || r.snap.generation <= gen {
		r.snap = fresh
		// An answer recorded while we were reading bumps the generation; keep
		// the snapshot as a fallback but do not serve it as fresh.
		if r.generation == gen {
			r.validUntil = now.Add(r.opts.SnapshotTTL)
		}
	}
	r.mu.Unlock()
	return fresh, nil
}

func (r *Ranker) handleAnswerRecorded(context.Context, domain.AnswerRecorded) {
	r.mu.Lock()
	r.generation++
	r.validUntil = time.Time{}
	r.mu.Unlock()
}

func buildSnapshot(rows []domain.Standing, takenAt time.Time, generation uint64) *standingsSnapshot {
	ordered := make([]domain.Standing, len(rows))
	copy(ordered, rows)
	sort.Slice(ordered, func(i, j int) bool { return rankedBefore(ordered[i], ordered[j]) })

	index := make(map[string]int, len(ordered))
	for i, st := range ordered {
		index[st.UserID] = i
	}
	return &standingsSnapshot{ordered: ordered, index: index, takenAt: takenAt, generation: generation}
}

// rankedBefore orders by points desc, then earlier ReachedAt, then user ID.
func rankedBefore(a, b domain.Standing) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.ReachedAt.Equal(b.ReachedAt) {
		return a.ReachedAt.Before(b.ReachedAt)
	}
	return a.UserID < b.UserID
}
