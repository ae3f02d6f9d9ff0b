package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"trivia-progression-service/internal/domain"
	"trivia-progression-service/internal/infra/memory"
)

func TestCatalogRepositoryCachesInRedis(t *testing.T) {
	mr := startRedis(t)
	client := newClient(mr)

	loader := &countingLoader{CatalogLoader: memory.NewStaticCatalogLoader(sampleQuestions())}
	repo := NewCatalogRepository(client, loader, time.Minute, nil)

	questions, err := repo.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 || questions[0].ID != "q1" {
		t.Fatalf("expected catalog ordered by id, got %+v", questions)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists(catalogKey) {
		t.Fatalf("expected %s to be cached", catalogKey)
	}
	if ttl := mr.TTL(catalogKey); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	// A fresh repository, as on another instance, reads the shared cache.
	other := NewCatalogRepository(client, loader, time.Minute, nil)
	q, err := other.Question(context.Background(), "q2")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if q.CorrectIndex != 1 || len(q.Options) != 2 {
		t.Fatalf("unexpected cached question %+v", q)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
}

func TestCatalogRepositoryReloadsAfterExpiry(t *testing.T) {
	mr := startRedis(t)
	loader := &countingLoader{CatalogLoader: memory.NewStaticCatalogLoader(sampleQuestions())}
	repo := NewCatalogRepository(newClient(mr), loader, time.Minute, nil)

	_, _ = repo.Questions(context.Background())
	mr.FastForward(2 * time.Minute)
	_, _ = repo.Questions(context.Background())
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls.Load())
	}
}

func TestCatalogRepositoryIgnoresForeignPayload(t *testing.T) {
	mr := startRedis(t)
	_ = mr.Set(catalogKey, `{"version":99,"questions":[]}`)
	loader := &countingLoader{CatalogLoader: memory.NewStaticCatalogLoader(sampleQuestions())}
	repo := NewCatalogRepository(newClient(mr), loader, time.Minute, nil)

	questions, err := repo.Questions(context.Background())
	if err != nil || len(questions) != 2 {
		t.Fatalf("expected loader fallback, got %v %v", questions, err)
	}
}

func TestCatalogRepositoryUnknownQuestion(t *testing.T) {
	mr := startRedis(t)
	repo := NewCatalogRepository(newClient(mr), memory.NewStaticCatalogLoader(sampleQuestions()), time.Minute, nil)
	if _, err := repo.Question(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogRepositoryServesLoaderWhenRedisDown(t *testing.T) {
	mr := startRedis(t)
	client := newClient(mr)
	mr.Close()

	repo := NewCatalogRepository(client, memory.NewStaticCatalogLoader(sampleQuestions()), time.Minute, nil)
	questions, err := repo.Questions(context.Background())
	if err != nil || len(questions) != 2 {
		t.Fatalf("expected loader result, got %v %v", questions, err)
	}
}

func TestCatalogRepositoryInvalidateForcesReload(t *testing.T) {
	mr := startRedis(t)
	loader := &countingLoader{CatalogLoader: memory.NewStaticCatalogLoader(sampleQuestions())}
	repo := NewCatalogRepository(newClient(mr), loader, time.Minute, nil)

	_, _ = repo.Questions(context.Background())
	if err := repo.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(catalogKey) {
		t.Fatalf("expected %s to be removed", catalogKey)
	}
	_, _ = repo.Questions(context.Background())
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls.Load())
	}
}

func TestCatalogRepositoryLoadSurvivesCallerCancellation(t *testing.T) {
	loader := &blockingLoader{
		CatalogLoader: memory.NewStaticCatalogLoader(sampleQuestions()),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	repo := NewCatalogRepository(newClient(startRedis(t)), loader, time.Minute, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := repo.Questions(firstCtx)
		first <- err
	}()
	<-loader.started

	second := make(chan error, 1)
	go func() {
		questions, err := repo.Questions(context.Background())
		if err == nil && len(questions) != 2 {
			err = fmt.Errorf("unexpected catalog %+v", questions)
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled caller to see context.Canceled, got %v", err)
	}
	close(loader.release)
	if err := <-second; err != nil {
		t.Fatalf("expected waiting caller to get the catalog, got %v", err)
	}
}

type countingLoader struct {
	memory.CatalogLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls.Add(1)
	return l.CatalogLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q2", Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
		{ID: "q1", Prompt: "Pick B", Options: []string{"A", "B", "C"}, CorrectIndex: 1},
	}
}

func startRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

type blockingLoader struct {
	memory.CatalogLoader
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (l *blockingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.once.Do(func() { close(l.started) })
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.CatalogLoader.LoadQuestions(ctx)
}
