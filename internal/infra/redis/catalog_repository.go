package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-progression-service/internal/domain"
	"trivia-progression-service/internal/infra/memory"
)

const (
	catalogKey     = "trivia:catalog"
	catalogVersion = 1
)

// CatalogRepository caches the question catalog in Redis as one JSON document
// and falls back to a loader on cache miss.
type CatalogRepository struct {
	client *redis.Client
	loader memory.CatalogLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
}

type cachedCatalog struct {
	Version   int               `json:"version"`
	Questions []domain.Question `json:"questions"`
}

func NewCatalogRepository(client *redis.Client, loader memory.CatalogLoader, ttl time.Duration, logger *slog.Logger) *CatalogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) Questions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := r.fromCache(ctx); ok {
		return questions, nil
	}

	// Shared by every waiting caller; detached from the first caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.fromCache(shared); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(shared)
		if err != nil {
			return nil, err
		}
		sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })

		payload, err := json.Marshal(cachedCatalog{Version: catalogVersion, Questions: questions})
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		// Cache write is best-effort; the loader result is authoritative.
		if err := r.client.Set(shared, catalogKey, payload, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("catalog cache write failed", "err", err)
		}
		return questions, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.Question(nil), res.Val.([]domain.Question)...), nil
	}
}

func (r *CatalogRepository) Question(ctx context.Context, id string) (domain.Question, error) {
	questions, err := r.Questions(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	idx := sort.Search(len(questions), func(i int) bool { return questions[i].ID >= id })
	if idx == len(questions) || questions[idx].ID != id {
		return domain.Question{}, fmt.Errorf("question %s: %w", id, domain.ErrNotFound)
	}
	return questions[idx], nil
}

// Invalidate drops the cached catalog so the next read reloads it.
func (r *CatalogRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, catalogKey).Err()
}

func (r *CatalogRepository) fromCache(ctx context.Context) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("catalog cache read failed", "err", err)
		}
		return nil, false
	}
	var cached cachedCatalog
	if err := json.Unmarshal(raw, &cached); err != nil || cached.Version != catalogVersion {
		return nil, false
	}
	return cached.Questions, true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
