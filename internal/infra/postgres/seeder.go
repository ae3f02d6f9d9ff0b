package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"trivia-progression-service/internal/domain"
)

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID           string   `bun:"id,pk"`
	Prompt       string   `bun:"prompt,notnull"`
	Options      []string `bun:"options,type:jsonb,notnull"`
	CorrectIndex int      `bun:"correct_index,notnull"`
	Category     string   `bun:"category,notnull"`
}

type rewardItemModel struct {
	bun.BaseModel `bun:"table:reward_items"`

	ID             string `bun:"id,pk"`
	Name           string `bun:"name,notnull"`
	AssetRef       string `bun:"asset_ref,notnull"`
	IsDefault      bool   `bun:"is_default,notnull"`
	RequiredPoints int    `bun:"required_points,notnull"`
}

type dailyAssignmentModel struct {
	bun.BaseModel `bun:"table:daily_assignments"`

	Day        time.Time `bun:"day,pk,type:date"`
	QuestionID string    `bun:"question_id,notnull"`
	AssignedAt time.Time `bun:"assigned_at,notnull"`
}

// SeedResult counts rows written by Seed.
type SeedResult struct {
	Questions   int64
	Rewards     int64
	Assignments int64
}

// Seeder publishes catalog content. Published questions and assigned days are
// never rewritten; reward items are upserted.
type Seeder struct {
	db  *bun.DB
	now func() time.Time
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db, now: time.Now}
}

func (s *Seeder) Seed(ctx context.Context, questions []domain.Question, rewards []domain.RewardItem, schedule map[domain.Day]string) (SeedResult, error) {
	var result SeedResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(questions) > 0 {
			models := make([]questionModel, 0, len(questions))
			for _, q := range questions {
				models = append(models, questionModel{
					ID:           q.ID,
					Prompt:       q.Prompt,
					Options:      q.Options,
					CorrectIndex: q.CorrectIndex,
					Category:     q.Category,
				})
			}
			res, err := tx.NewInsert().Model(&models).On("CONFLICT (id) DO NOTHING").Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed questions: %w", err)
			}
			result.Questions, _ = res.RowsAffected()
		}

		if len(rewards) > 0 {
			models := make([]rewardItemModel, 0, len(rewards))
			for _, r := range rewards {
				models = append(models, rewardItemModel{
					ID:             r.ID,
					Name:           r.Name,
					AssetRef:       r.AssetRef,
					IsDefault:      r.IsDefault,
					RequiredPoints: r.RequiredPoints,
				})
			}
			res, err := tx.NewInsert().Model(&models).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("asset_ref = EXCLUDED.asset_ref").
				Set("is_default = EXCLUDED.is_default").
				Set("required_points = EXCLUDED.required_points").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed rewards: %w", err)
			}
			result.Rewards, _ = res.RowsAffected()
		}

		if len(schedule) > 0 {
			now := s.now()
			models := make([]dailyAssignmentModel, 0, len(schedule))
			for day, questionID := range schedule {
				models = append(models, dailyAssignmentModel{Day: day.Time(), QuestionID: questionID, AssignedAt: now})
			}
			res, err := tx.NewInsert().Model(&models).On("CONFLICT (day) DO NOTHING").Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed schedule: %w", err)
			}
			result.Assignments, _ = res.RowsAffected()
		}
		return nil
	})
	return result, err
}
