package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trivia-progression-service/internal/app"
	"trivia-progression-service/internal/domain"
	"trivia-progression-service/internal/infra/memory"
)

func TestQuestionHidesCorrectIndex(t *testing.T) {
	server := newTestServer(t)

	status, body := do(t, server, http.MethodGet, "/v1/question", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "q1", body["id"])
	assert.Equal(t, "2024-05-01", body["day"])
	assert.NotContains(t, body, "correctIndex")

	status, body = do(t, server, http.MethodGet, "/v1/question/2024-02-30", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_day", body["error"])
}

func TestAnswerFlow(t *testing.T) {
	server := newTestServer(t)

	status, body := do(t, server, http.MethodPost, "/v1/answers", "u1", map[string]any{"day": "2024-05-01", "choice": 1})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["correct"])
	assert.EqualValues(t, 1, body["points"])

	status, body = do(t, server, http.MethodPost, "/v1/answers", "u1", map[string]any{"choice": 0})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_answered", body["error"])

	status, body = do(t, server, http.MethodGet, "/v1/me/points", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["points"])

	status, body = do(t, server, http.MethodGet, "/v1/me/daily", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "answered_today", body["status"])
	assert.Equal(t, true, body["correct"])
}

func TestAnswerRejections(t *testing.T) {
	server := newTestServer(t)

	cases := []struct {
		name   string
		user   string
		body   any
		status int
		code   string
	}{
		{"missing user", "", map[string]any{"choice": 1}, http.StatusUnauthorized, "missing_user"},
		{"missing choice", "u1", map[string]any{}, http.StatusBadRequest, "invalid_request"},
		{"out of range", "u1", map[string]any{"choice": 3}, http.StatusBadRequest, "invalid_choice"},
		{"other day", "u1", map[string]any{"day": "2024-04-30", "choice": 1}, http.StatusBadRequest, "wrong_day"},
		{"unknown field", "u1", map[string]any{"choice": 1, "answer": "B"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, server, http.MethodPost, "/v1/answers", tc.user, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body["error"])
		})
	}
}

func TestRewardEndpoints(t *testing.T) {
	server := newTestServer(t)

	status, body := do(t, server, http.MethodPut, "/v1/me/rewards/current", "u1", map[string]any{"itemId": "gold"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "locked", body["error"])

	status, _ = do(t, server, http.MethodGet, "/v1/me/rewards/current", "u1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, server, http.MethodPut, "/v1/me/rewards/current", "u1", map[string]any{"itemId": "basic"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "basic", body["itemId"])

	items := doList(t, server, "/v1/rewards", "")
	require.Len(t, items, 2)
	assert.Equal(t, "basic", items[0]["id"])

	unlocked := doList(t, server, "/v1/me/rewards", "u1")
	require.Len(t, unlocked, 1)

	history := doList(t, server, "/v1/me/rewards/history", "u1")
	require.Len(t, history, 1)
	assert.Equal(t, "basic", history[0]["itemId"])
}

func TestLeaderboardAndRank(t *testing.T) {
	server := newTestServer(t)

	status, body := do(t, server, http.MethodGet, "/v1/me/rank", "u1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_ranked", body["error"])

	status, _ = do(t, server, http.MethodPut, "/v1/me/profile", "u1", map[string]any{"displayName": "Ada"})
	require.Equal(t, http.StatusOK, status)
	status, _ = do(t, server, http.MethodPost, "/v1/answers", "u1", map[string]any{"choice": 1})
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, server, http.MethodGet, "/v1/leaderboard?limit=10", "", nil)
	require.Equal(t, http.StatusOK, status)
	rows, ok := body["rows"].([]any)
	require.True(t, ok, "rows: %v", body["rows"])
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "Ada", row["displayName"])
	assert.EqualValues(t, 1, row["rank"])

	status, body = do(t, server, http.MethodGet, "/v1/me/rank", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["rank"])

	status, body = do(t, server, http.MethodGet, "/v1/leaderboard?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestProfileValidation(t *testing.T) {
	server := newTestServer(t)
	status, body := do(t, server, http.MethodPut, "/v1/me/profile", "u1", map[string]any{"displayName": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_name", body["error"])
}

func TestProfileRoundTrip(t *testing.T) {
	server := newTestServer(t)

	status, body := do(t, server, http.MethodGet, "/v1/me/profile", "user-42", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Wisher.user-4", body["displayName"])

	status, _ = do(t, server, http.MethodPut, "/v1/me/profile", "user-42", map[string]any{"displayName": "  Ada "})
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, server, http.MethodGet, "/v1/me/profile", "user-42", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ada", body["displayName"])

	status, body = do(t, server, http.MethodGet, "/v1/me/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing_user", body["error"])
}

func TestEmptyCatalogIsNotConfigured(t *testing.T) {
	service := app.NewService(app.Deps{
		Catalog:     memory.NewCatalogRepository(memory.NewStaticCatalogLoader(nil), time.Minute),
		Assignments: memory.NewLedgerStore(),
		Answers:     memory.NewLedgerStore(),
		Rewards:     memory.NewRewardStore(nil),
		Profiles:    memory.NewProfileStore(),
		Clock:       fixedClock,
	})
	mux := http.NewServeMux()
	NewHandler(service, nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	status, body := do(t, server, http.MethodGet, "/v1/question", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_configured", body["error"])
}

func newTestService() *app.Service {
	ledger := memory.NewLedgerStore()
	return app.NewService(app.Deps{
		Catalog: memory.NewCatalogRepository(memory.NewStaticCatalogLoader([]domain.Question{
			{ID: "q1", Prompt: "Pick B", Options: []string{"A", "B", "C"}, CorrectIndex: 1},
		}), time.Minute),
		Assignments: ledger,
		Answers:     ledger,
		Rewards: memory.NewRewardStore([]domain.RewardItem{
			{ID: "basic", Name: "Basic", IsDefault: true},
			{ID: "gold", Name: "Gold", RequiredPoints: 3},
		}),
		Profiles:    memory.NewProfileStore(),
		PointsCache: memory.NewPointsCache(time.Minute),
		Leaderboard: app.DefaultRankerOptions(),
		Clock:       fixedClock,
	})
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	service := newTestService()
	mux := http.NewServeMux()
	NewHandler(service, nil).Register(mux)
	mux.HandleFunc("GET /ws", NewWSHandler(service, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func request(t *testing.T, server *httptest.Server, method, path, userID string, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, server.URL+path, body)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func do(t *testing.T, server *httptest.Server, method, path, userID string, payload any) (int, map[string]any) {
	t.Helper()
	status, raw := request(t, server, method, path, userID, payload)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return status, out
}

func doList(t *testing.T, server *httptest.Server, path, userID string) []map[string]any {
	t.Helper()
	status, raw := request(t, server, http.MethodGet, path, userID, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}
