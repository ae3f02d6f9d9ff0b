package domain

import (
	"fmt"
	"time"
)

// Question is a published trivia question. It is never mutated after publishing.
type Question struct {
	ID           string   `json:"id" yaml:"id"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correct_index"`
	Category     string   `json:"category,omitempty" yaml:"category"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question: missing id")
	}
	if q.Prompt == "" {
		return fmt.Errorf("question %s: missing prompt", q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s: need at least two options, got %d", q.ID, len(q.Options))
	}
	if !q.ValidChoice(q.CorrectIndex) {
		return fmt.Errorf("question %s: correct index %d out of range", q.ID, q.CorrectIndex)
	}
	return nil
}

// ValidChoice reports whether idx addresses one of the options.
func (q Question) ValidChoice(idx int) bool {
	return idx >= 0 && idx < len(q.Options)
}

// PublicQuestion is the client view of a question; it hides the answer.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Day      Day      `json:"day"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Category string   `json:"category,omitempty"`
}

// Public strips the correct index for the given day.
func (q Question) Public(day Day) PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Day:      day,
		Prompt:   q.Prompt,
		Options:  append([]string(nil), q.Options...),
		Category: q.Category,
	}
}

// DailyAssignment maps a calendar day to its question.
type DailyAssignment struct {
	Day        Day    `yaml:"day"`
	QuestionID string `yaml:"question_id"`
}

// Answer is a ledger row. At most one exists per (UserID, Day).
type Answer struct {
	ID          string
	UserID      string
	QuestionID  string
	ChosenIndex int
	Correct     bool
	Day         Day
	AnsweredAt  time.Time
}

// AnswerResult summarizes an accepted submission.
type AnswerResult struct {
	AnswerID   string `json:"answerId"`
	QuestionID string `json:"questionId"`
	Day        Day    `json:"day"`
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
}

// AnswerRecorded is published after an answer is committed to the ledger.
type AnswerRecorded struct {
	UserID     string
	Day        Day
	QuestionID string
	Correct    bool
	At         time.Time
}

// DailyStatus is a user's position in the daily cycle.
type DailyStatus string

const (
	NoAnswerToday DailyStatus = "no_answer_today"
	AnsweredToday DailyStatus = "answered_today"
)

// DailyState reports whether a user has answered on a day.
type DailyState struct {
	Day     Day         `json:"day"`
	Status  DailyStatus `json:"status"`
	Correct *bool       `json:"correct,omitempty"`
}

// RewardItem is an unlockable cosmetic (an avatar).
type RewardItem struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	AssetRef       string `json:"assetRef" yaml:"asset_ref"`
	IsDefault      bool   `json:"isDefault" yaml:"is_default"`
	RequiredPoints int    `json:"requiredPoints" yaml:"required_points"`
}

// Validate checks the threshold invariants of a reward.
func (r RewardItem) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("reward: missing id")
	}
	if r.RequiredPoints < 0 {
		return fmt.Errorf("reward %s: negative required points", r.ID)
	}
	if r.IsDefault && r.RequiredPoints != 0 {
		return fmt.Errorf("reward %s: default item must require zero points", r.ID)
	}
	return nil
}

// UnlockedAt reports whether the item is available at the given score.
func (r RewardItem) UnlockedAt(points int) bool {
	return r.IsDefault || points >= r.RequiredPoints
}

// UnlockRecord notes the first time an item became eligible for a user.
type UnlockRecord struct {
	UserID     string    `json:"userId"`
	ItemID     string    `json:"itemId"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// Selection is a user's single active reward.
type Selection struct {
	UserID     string    `json:"userId"`
	ItemID     string    `json:"itemId"`
	SelectedAt time.Time `json:"selectedAt"`
}

// Standing aggregates a user's ledger rows for ranking.
type Standing struct {
	UserID string
	Points int
	// ReachedAt is when the user reached the current score: the latest correct
	// answer, or the first answer while the score is zero.
	ReachedAt    time.Time
	LastAnswerAt time.Time
}

// LeaderboardRow is the ranked read model.
type LeaderboardRow struct {
	Rank         int       `json:"rank"`
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	Points       int       `json:"points"`
	LastAnswerAt time.Time `json:"lastAnswerAt"`
	RewardID     string    `json:"rewardId,omitempty"`
}

// Leaderboard is an ordered page of rows.
type Leaderboard struct {
	Rows      []LeaderboardRow `json:"rows"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DefaultDisplayName is used when a user has not set a profile name.
func DefaultDisplayName(userID string) string {
	prefix := []rune(userID)
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return "Wisher." + string(prefix)
}
