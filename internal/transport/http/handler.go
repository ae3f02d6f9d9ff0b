package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"trivia-progression-service/internal/app"
	"trivia-progression-service/internal/domain"
)

// UserHeader carries the caller identity set by the gateway.
const UserHeader = "X-User-ID"

// Handler serves the REST API.
type Handler struct {
	service *app.Service
	logger  *slog.Logger
}

func NewHandler(service *app.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the REST routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /v1/question", h.getQuestion)
	mux.HandleFunc("GET /v1/question/{day}", h.getQuestion)
	mux.HandleFunc("POST /v1/answers", h.submitAnswer)
	mux.HandleFunc("GET /v1/me/daily", h.getDailyState)
	mux.HandleFunc("GET /v1/me/points", h.getPoints)
	mux.HandleFunc("GET /v1/me/rewards", h.getUnlockedRewards)
	mux.HandleFunc("GET /v1/rewards", h.getRewardCatalog)
	mux.HandleFunc("GET /v1/me/rewards/current", h.getCurrentReward)
	mux.HandleFunc("PUT /v1/me/rewards/current", h.selectReward)
	mux.HandleFunc("GET /v1/me/rewards/history", h.getClaimHistory)
	mux.HandleFunc("GET /v1/me/profile", h.getProfile)
	mux.HandleFunc("PUT /v1/me/profile", h.setProfile)
	mux.HandleFunc("GET /v1/leaderboard", h.getLeaderboard)
	mux.HandleFunc("GET /v1/me/rank", h.getRank)
}

type answerRequest struct {
	Day    string `json:"day"`
	Choice *int   `json:"choice"`
}

type answerResponse struct {
	AnswerID   string     `json:"answerId"`
	QuestionID string     `json:"questionId"`
	Day        domain.Day `json:"day"`
	Correct    bool       `json:"correct"`
	Points     int        `json:"points"`
}

type pointsResponse struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
}

type rankResponse struct {
	UserID string `json:"userId"`
	Rank   int    `json:"rank"`
}

type selectRequest struct {
	ItemID string `json:"itemId"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

type profileResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type leaderboardResponse struct {
	Rows      []domain.LeaderboardRow `json:"rows"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	day, err := h.dayOrToday(r.PathValue("day"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.service.GetQuestionOfDay(r.Context(), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q.Public(day))
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	var req answerRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Choice == nil {
		h.fail(w, r, fmt.Errorf("%w: choice is required", errInvalidRequest))
		return
	}
	day, err := h.dayOrToday(req.Day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.SubmitAnswer(r.Context(), userID, day, *req.Choice)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		AnswerID:   res.AnswerID,
		QuestionID: res.QuestionID,
		Day:        res.Day,
		Correct:    res.Correct,
		Points:     res.Points,
	})
}

func (h *Handler) getDailyState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GetDailyState(r.Context(), r.Header.Get(UserHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) getPoints(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	points, err := h.service.GetPoints(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{UserID: userID, Points: points})
}

func (h *Handler) getUnlockedRewards(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetUnlockedRewards(r.Context(), r.Header.Get(UserHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getRewardCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetRewardCatalog(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getCurrentReward(w http.ResponseWriter, r *http.Request) {
	sel, err := h.service.GetCurrentReward(r.Context(), r.Header.Get(UserHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *Handler) selectReward(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sel, err := h.service.SelectReward(r.Context(), r.Header.Get(UserHeader), req.ItemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *Handler) getClaimHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.GetClaimHistory(r.Context(), r.Header.Get(UserHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	name, err := h.service.GetDisplayName(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserID: userID, DisplayName: name})
}

func (h *Handler) setProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	name, err := h.service.SetDisplayName(r.Context(), userID, req.DisplayName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserID: userID, DisplayName: name})
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(w, r, fmt.Errorf("%w: limit must be a positive integer", errInvalidRequest))
			return
		}
		limit = n
	}
	lb, err := h.service.GetLeaderboard(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Rows: lb.Rows, UpdatedAt: lb.UpdatedAt})
}

func (h *Handler) getRank(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	rank, err := h.service.GetRank(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{UserID: userID, Rank: rank})
}

func (h *Handler) dayOrToday(raw string) (domain.Day, error) {
	if raw == "" {
		return h.service.Today(), nil
	}
	return domain.ParseDay(raw)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}
