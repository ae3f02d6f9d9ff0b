package app

import (
	"context"
	"sync"

	"trivia-progression-service/internal/domain"
)

// AnswerHandler reacts to a committed answer.
type AnswerHandler func(ctx context.Context, evt domain.AnswerRecorded)

// EventBus delivers domain events to in-process subscribers.
// Handlers run synchronously in registration order, so by the time Publish
// returns every projection has seen the event.
type EventBus struct {
	mu       sync.RWMutex
	handlers []AnswerHandler
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// OnAnswerRecorded registers h for AnswerRecorded events.
func (b *EventBus) OnAnswerRecorded(h AnswerHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// PublishAnswerRecorded fans evt out to all handlers. The answer is already
// committed, so handlers are detached from the caller's cancellation.
func (b *EventBus) PublishAnswerRecorded(ctx context.Context, evt domain.AnswerRecorded) {
	b.mu.RLock()
	handlers := append([]AnswerHandler(nil), b.handlers...)
	b.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		h(ctx, evt)
	}
}
