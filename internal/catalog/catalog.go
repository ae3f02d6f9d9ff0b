// Package catalog reads trivia content files: questions, reward items and an
// optional day schedule.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
	"trivia-progression-service/internal/domain"
)

// Catalog is validated catalog content.
type Catalog struct {
	Questions []domain.Question
	Rewards   []domain.RewardItem
	Schedule  map[domain.Day]string
}

type file struct {
	Questions []domain.Question   `yaml:"questions"`
	Rewards   []domain.RewardItem `yaml:"rewards"`
	Schedule  map[string]string   `yaml:"schedule"`
}

// Load reads and validates a YAML catalog file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	cat, err := Parse(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates YAML catalog content. All problems are
// reported together.
func Parse(data []byte) (Catalog, error) {
	var raw file
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	var errs []error
	questionIDs := make(map[string]struct{}, len(raw.Questions))
	for _, q := range raw.Questions {
		if err := q.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := questionIDs[q.ID]; dup {
			errs = append(errs, fmt.Errorf("question %s: duplicate id", q.ID))
			continue
		}
		questionIDs[q.ID] = struct{}{}
	}

	rewardIDs := make(map[string]struct{}, len(raw.Rewards))
	for _, r := range raw.Rewards {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := rewardIDs[r.ID]; dup {
			errs = append(errs, fmt.Errorf("reward %s: duplicate id", r.ID))
			continue
		}
		rewardIDs[r.ID] = struct{}{}
	}

	schedule := make(map[domain.Day]string, len(raw.Schedule))
	for rawDay, questionID := range raw.Schedule {
		day, err := domain.ParseDay(rawDay)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule: %w", err))
			continue
		}
		if _, ok := questionIDs[questionID]; !ok {
			errs = append(errs, fmt.Errorf("schedule %s: unknown question %s", day, questionID))
			continue
		}
		schedule[day] = questionID
	}

	if len(errs) > 0 {
		return Catalog{}, errors.Join(errs...)
	}

	sort.Slice(raw.Questions, func(i, j int) bool { return raw.Questions[i].ID < raw.Questions[j].ID })
	return Catalog{Questions: raw.Questions, Rewards: raw.Rewards, Schedule: schedule}, nil
}
