package domain

import "errors"

var (
	// ErrNotConfigured is returned when no question is available for a day.
	ErrNotConfigured = errors.New("no question configured for day")
	// ErrInvalidChoice indicates an option index outside the question's options.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrAlreadyAnswered is returned for a second submission on the same day.
	ErrAlreadyAnswered = errors.New("already answered today")
	// ErrLocked indicates a reward whose threshold has not been met.
	ErrLocked = errors.New("reward locked")
	// ErrNotFound indicates an unknown question, reward or selection.
	ErrNotFound = errors.New("not found")
	// ErrNotRanked is returned for users without any answers.
	ErrNotRanked = errors.New("user not ranked")
	// ErrWrongDay rejects submissions for a day other than today.
	ErrWrongDay = errors.New("day does not match current day")
	// ErrInvalidDay indicates a malformed calendar day.
	ErrInvalidDay = errors.New("invalid day")
	// ErrMissingUser is returned when the caller identity is absent.
	ErrMissingUser = errors.New("missing user identity")
	// ErrInvalidName rejects empty or oversized display names.
	ErrInvalidName = errors.New("invalid display name")
	// ErrStoreUnavailable wraps storage failures on the answer write path.
	ErrStoreUnavailable = errors.New("store unavailable")
)
