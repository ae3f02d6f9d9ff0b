package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"trivia-progression-service/internal/domain"
)

var errInvalidRequest = errors.New("invalid request")

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrNotConfigured, http.StatusNotFound, "not_configured"},
	{domain.ErrInvalidChoice, http.StatusBadRequest, "invalid_choice"},
	{domain.ErrAlreadyAnswered, http.StatusConflict, "already_answered"},
	{domain.ErrLocked, http.StatusForbidden, "locked"},
	{domain.ErrNotRanked, http.StatusNotFound, "not_ranked"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrWrongDay, http.StatusBadRequest, "wrong_day"},
	{domain.ErrInvalidDay, http.StatusBadRequest, "invalid_day"},
	{domain.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
	{domain.ErrMissingUser, http.StatusUnauthorized, "missing_user"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{errInvalidRequest, http.StatusBadRequest, "invalid_request"},
}

// classify maps an error to its HTTP status and stable error code.
func classify(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
