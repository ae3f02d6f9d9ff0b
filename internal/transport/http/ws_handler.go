package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"trivia-progression-service/internal/app"
	"trivia-progression-service/internal/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// WSHandler serves the request/response RPC over a websocket. Every inbound
// message gets exactly one reply; the server never pushes.
type WSHandler struct {
	service  *app.Service
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type dayPayload struct {
	Day string `json:"day"`
}

type limitPayload struct {
	Limit int `json:"limit"`
}

type rewardsResult struct {
	Unlocked []domain.RewardItem `json:"unlocked"`
	Current  string              `json:"current,omitempty"`
}

type rpcFunc func(ctx context.Context, userID string, payload json.RawMessage) (any, error)

// ServeWS upgrades HTTP requests to websockets and dispatches RPC messages
// to the progression use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// WriteControl is safe alongside the reader loop's writes.
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	routes := h.routes()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read failed", "user_id", userID, "err", err)
			}
			return
		}

		reply := outboundMessage{ID: inbound.ID, Type: inbound.Type + "Result"}
		call, ok := routes[inbound.Type]
		if !ok {
			reply.Type = "error"
			reply.Payload = errorBody{Error: "unsupported", Message: "unsupported message type " + inbound.Type}
		} else if result, err := call(r.Context(), userID, inbound.Payload); err != nil {
			_, code := classify(err)
			reply.Type = "error"
			reply.Payload = errorBody{Error: code, Message: err.Error()}
		} else {
			reply.Payload = result
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("ws write failed", "user_id", userID, "err", err)
			return
		}
	}
}

func (h *WSHandler) routes() map[string]rpcFunc {
	return map[string]rpcFunc{
		"question":    h.question,
		"answer":      h.answer,
		"points":      h.points,
		"rewards":     h.rewards,
		"select":      h.selectReward,
		"leaderboard": h.leaderboard,
		"rank":        h.rank,
	}
}

func (h *WSHandler) question(ctx context.Context, _ string, payload json.RawMessage) (any, error) {
	var p dayPayload
	if err := unmarshalPayload(payload, &p); err != nil {
		return nil, err
	}
	day, err := h.day(p.Day)
	if err != nil {
		return nil, err
	}
	q, err := h.service.GetQuestionOfDay(ctx, day)
	if err != nil {
		return nil, err
	}
	return q.Public(day), nil
}

func (h *WSHandler) answer(ctx context.Context, userID string, payload json.RawMessage) (any, error) {
	var p answerRequest
	if err := unmarshalPayload(payload, &p); err != nil {
		return nil, err
	}
	if p.Choice == nil {
		return nil, fmt.Errorf("%w: choice is required", errInvalidRequest)
	}
	day, err := h.day(p.Day)
	if err != nil {
		return nil, err
	}
	res, err := h.service.SubmitAnswer(ctx, userID, day, *p.Choice)
	if err != nil {
		return nil, err
	}
	return answerResponse{
		AnswerID:   res.AnswerID,
		QuestionID: res.QuestionID,
		Day:        res.Day,
		Correct:    res.Correct,
		Points:     res.Points,
	}, nil
}

func (h *WSHandler) points(ctx context.Context, userID string, _ json.RawMessage) (any, error) {
	points, err := h.service.GetPoints(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pointsResponse{UserID: userID, Points: points}, nil
}

func (h *WSHandler) rewards(ctx context.Context, userID string, _ json.RawMessage) (any, error) {
	unlocked, err := h.service.GetUnlockedRewards(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := rewardsResult{Unlocked: unlocked}
	if sel, err := h.service.GetCurrentReward(ctx, userID); err == nil {
		result.Current = sel.ItemID
	}
	return result, nil
}

func (h *WSHandler) selectReward(ctx context.Context, userID string, payload json.RawMessage) (any, error) {
	var p selectRequest
	if err := unmarshalPayload(payload, &p); err != nil {
		return nil, err
	}
	return h.service.SelectReward(ctx, userID, p.ItemID)
}

func (h *WSHandler) leaderboard(ctx context.Context, _ string, payload json.RawMessage) (any, error) {
	var p limitPayload
	if err := unmarshalPayload(payload, &p); err != nil {
		return nil, err
	}
	lb, err := h.service.GetLeaderboard(ctx, p.Limit)
	if err != nil {
		return nil, err
	}
	return leaderboardResponse{Rows: lb.Rows, UpdatedAt: lb.UpdatedAt}, nil
}

func (h *WSHandler) rank(ctx context.Context, userID string, _ json.RawMessage) (any, error) {
	rank, err := h.service.GetRank(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rankResponse{UserID: userID, Rank: rank}, nil
}

func (h *WSHandler) day(raw string) (domain.Day, error) {
	if raw == "" {
		return h.service.Today(), nil
	}
	return domain.ParseDay(raw)
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}
