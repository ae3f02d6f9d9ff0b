package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"trivia-progression-service/internal/app"
	"trivia-progression-service/internal/domain"
	pgstore "trivia-progression-service/internal/infra/postgres"
	pgmigrations "trivia-progression-service/internal/infra/postgres/migrations"
	infraredis "trivia-progression-service/internal/infra/redis"
)

var scheduleDay = domain.Day("2024-05-01")

func TestProgressionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	ledger := pgstore.NewLedgerStore(pool)
	now := scheduleDay.Time().Add(9 * time.Hour)
	service := app.NewService(app.Deps{
		Catalog:     infraredis.NewCatalogRepository(redisClient, pgstore.NewCatalogLoader(pool), 5*time.Minute, nil),
		Assignments: infraredis.NewAssignmentStore(redisClient, ledger),
		Answers:     ledger,
		Rewards:     pgstore.NewRewardStore(pool),
		Profiles:    pgstore.NewProfileStore(pool),
		PointsCache: infraredis.NewPointsCache(redisClient, time.Minute),
		Leaderboard: app.DefaultRankerOptions(),
		Clock:       func() time.Time { return now },
	})

	q, err := service.GetQuestionOfDay(ctx, scheduleDay)
	if err != nil {
		t.Fatalf("question of day: %v", err)
	}
	if q.ID != "q1" {
		t.Fatalf("expected scheduled q1, got %s", q.ID)
	}

	res, err := service.SubmitAnswer(ctx, "u1", scheduleDay, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Points != 1 {
		t.Fatalf("expected correct answer with 1 point, got %+v", res)
	}
	if _, err := service.SubmitAnswer(ctx, "u1", scheduleDay, 0); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	// Concurrent submissions for one user: exactly one row is written.
	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(choice int) {
			defer wg.Done()
			_, err := service.SubmitAnswer(ctx, "u2", scheduleDay, choice%3)
			if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
				t.Errorf("unexpected submit error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful submission, got %d", successes)
	}
	var rows int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM answers WHERE user_id = 'u2'`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one stored answer, got %d", rows)
	}

	if _, err := service.SelectReward(ctx, "u1", "gold"); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected gold locked, got %v", err)
	}
	if _, err := service.SelectReward(ctx, "u1", "bronze"); err != nil {
		t.Fatalf("select bronze: %v", err)
	}
	if _, err := service.SetDisplayName(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("set display name: %v", err)
	}

	lb, err := service.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Rows) == 0 || lb.Rows[0].UserID != "u1" {
		t.Fatalf("expected u1 leading, got %+v", lb.Rows)
	}
	if lb.Rows[0].DisplayName != "Alice" || lb.Rows[0].RewardID != "bronze" {
		t.Fatalf("expected decorated row, got %+v", lb.Rows[0])
	}
	if rank, err := service.GetRank(ctx, "u1"); err != nil || rank != 1 {
		t.Fatalf("expected rank 1, got %d %v", rank, err)
	}
}

func TestLedgerStoreMapsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	seedCatalog(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	ledger := pgstore.NewLedgerStore(pool)

	answer := domain.Answer{
		ID: uuid.NewString(), UserID: "u1", QuestionID: "q1", ChosenIndex: 1,
		Correct: true, Day: scheduleDay, AnsweredAt: time.Now().UTC(),
	}
	if err := ledger.InsertAnswer(ctx, answer); err != nil {
		t.Fatalf("insert: %v", err)
	}
	answer.ID = uuid.NewString()
	if err := ledger.InsertAnswer(ctx, answer); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	stored, ok, err := ledger.AnswerFor(ctx, "u1", scheduleDay)
	if err != nil || !ok || stored.Day != scheduleDay {
		t.Fatalf("expected stored answer for %s, got %+v ok=%v err=%v", scheduleDay, stored, ok, err)
	}

	winner, err := ledger.AssignIfAbsent(ctx, scheduleDay, "q2")
	if err != nil || winner != "q1" {
		t.Fatalf("expected seeded assignment q1 to win, got %s %v", winner, err)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err := pgstore.NewSeeder(db).Seed(ctx,
		[]domain.Question{
			{ID: "q1", Prompt: "Pick B", Options: []string{"A", "B", "C"}, CorrectIndex: 1},
			{ID: "q2", Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
		},
		[]domain.RewardItem{
			{ID: "basic", Name: "Basic", IsDefault: true},
			{ID: "bronze", Name: "Bronze", RequiredPoints: 1},
			{ID: "gold", Name: "Gold", RequiredPoints: 3},
		},
		map[domain.Day]string{scheduleDay: "q1"},
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
