package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"trivia-progression-service/internal/domain"
)

const maxDisplayNameRunes = 64

// Profiles manages display names used by the leaderboard.
type Profiles struct {
	store ProfileStore
	now   func() time.Time
}

func NewProfiles(store ProfileStore, now func() time.Time) *Profiles {
	return &Profiles{store: store, now: now}
}

// SetDisplayName stores a trimmed display name for userID.
func (p *Profiles) SetDisplayName(ctx context.Context, userID, name string) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingUser
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxDisplayNameRunes {
		return "", fmt.Errorf("%w: length must be 1..%d", domain.ErrInvalidName, maxDisplayNameRunes)
	}
	if err := p.store.SetDisplayName(ctx, userID, name, p.now()); err != nil {
		return "", err
	}
	return name, nil
}

// DisplayName returns the stored name or the default for userID.
func (p *Profiles) DisplayName(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingUser
	}
	names, err := p.store.DisplayNames(ctx, []string{userID})
	if err != nil {
		return "", err
	}
	if name := names[userID]; name != "" {
		return name, nil
	}
	return domain.DefaultDisplayName(userID), nil
}
