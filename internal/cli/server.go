package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"trivia-progression-service/internal/app"
	"trivia-progression-service/internal/catalog"
	"trivia-progression-service/internal/config"
	"trivia-progression-service/internal/domain"
	"trivia-progression-service/internal/infra/memory"
	"trivia-progression-service/internal/infra/postgres"
	infraredis "trivia-progression-service/internal/infra/redis"
	"trivia-progression-service/internal/lib/slogpretty"
	transport "trivia-progression-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var memoryMode bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			portFlag := ""
			if cmd.Flags().Changed("port") {
				portFlag = *port
			}
			return runServer(cmd.Context(), *configPath, portFlag, memoryMode)
		},
	}
	cmd.Flags().BoolVar(&memoryMode, "memory", false, "use in-memory stores and ignore postgres/redis settings")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string, memoryMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !memoryMode || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.Default()
	}
	if memoryMode {
		cfg.Postgres.URL = ""
		cfg.Redis.Addr = ""
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	service, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	mux := http.NewServeMux()
	transport.NewHandler(service, logger.With("component", "http")).Register(mux)
	mux.HandleFunc("GET /ws", transport.NewWSHandler(service, logger.With("component", "ws")).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia service", "port", finalPort, "memory", memoryMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService wires Postgres when configured (memory otherwise) and puts the
// Redis caches in front when a Redis address is set.
func buildService(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.Service, func(), error) {
	cleanup := func() {}

	content := sampleCatalog()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, cleanup, err
		}
		content = loaded
	}

	var (
		loader      memory.CatalogLoader
		answers     app.AnswerStore
		assignments app.AssignmentStore
		rewards     app.RewardStore
		profiles    app.ProfileStore
		pool        *pgxpool.Pool
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return nil, cleanup, err
		}
		if cfg.Catalog.Path != "" {
			if err := seedCatalog(ctx, cfg, logger); err != nil {
				return nil, cleanup, err
			}
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = pool.Close

		ledger := postgres.NewLedgerStore(pool)
		loader = postgres.NewCatalogLoader(pool)
		answers, assignments = ledger, ledger
		rewards = postgres.NewRewardStore(pool)
		profiles = postgres.NewProfileStore(pool)
	} else {
		ledger := memory.NewLedgerStore()
		loader = memory.NewStaticCatalogLoader(content.Questions)
		answers, assignments = ledger, ledger
		rewards = memory.NewRewardStore(content.Rewards)
		profiles = memory.NewProfileStore()
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	pointsTTL := config.TTLDuration(cfg.Points.CacheTTL, time.Minute)

	var (
		questions   app.QuestionCatalog
		pointsCache app.PointsCache
	)
	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		closePool := cleanup
		cleanup = func() {
			_ = client.Close()
			closePool()
		}
		// redis.ttl is the default expiry for Redis entries; catalog.ttl wins when set.
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		questions = infraredis.NewCatalogRepository(client, loader, config.TTLDuration(cfg.Catalog.TTL, redisTTL), logger.With("component", "catalog"))
		// Postgres stays authoritative for assignments; without it SETNX decides.
		var backing app.AssignmentStore
		if pool != nil {
			backing = assignments
		}
		assignments = infraredis.NewAssignmentStore(client, backing)
		pointsCache = infraredis.NewPointsCache(client, pointsTTL)
	} else {
		questions = memory.NewCatalogRepository(loader, catalogTTL)
		pointsCache = memory.NewPointsCache(pointsTTL)
	}

	// Postgres receives the schedule through seeding; this covers memory and
	// Redis-only deployments and is a no-op for already assigned days.
	for day, questionID := range content.Schedule {
		if _, err := assignments.AssignIfAbsent(ctx, day, questionID); err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}

	service := app.NewService(app.Deps{
		Catalog:     questions,
		Assignments: assignments,
		Answers:     answers,
		Rewards:     rewards,
		Profiles:    profiles,
		PointsCache: pointsCache,
		Leaderboard: rankerOptions(cfg),
		Logger:      logger,
	})
	return service, cleanup, nil
}

func rankerOptions(cfg config.Config) app.RankerOptions {
	opts := app.DefaultRankerOptions()
	lb := cfg.Leaderboard
	if lb.DefaultLimit > 0 {
		opts.DefaultLimit = lb.DefaultLimit
	}
	if lb.MaxLimit > 0 {
		opts.MaxLimit = lb.MaxLimit
	}
	if lb.MinPoints != nil {
		opts.MinPoints = *lb.MinPoints
	}
	opts.SnapshotTTL = config.TTLDuration(lb.SnapshotTTL, opts.SnapshotTTL)
	opts.ReadTimeout = config.TTLDuration(lb.ReadTimeout, opts.ReadTimeout)
	return opts
}

func newLogger(cfg config.Config) *slog.Logger {
	return slogpretty.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
}

// sampleCatalog is served when no catalog file is configured.
func sampleCatalog() catalog.Catalog {
	return catalog.Catalog{
		Questions: []domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1, Category: "math"},
			{ID: "q2", Prompt: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter"}, CorrectIndex: 1, Category: "space"},
			{ID: "q3", Prompt: "What is the chemical symbol for gold?", Options: []string{"Ag", "Au", "Gd"}, CorrectIndex: 1, Category: "science"},
		},
		Rewards: []domain.RewardItem{
			{ID: "basic", Name: "Basic", AssetRef: "avatars/basic.png", IsDefault: true},
			{ID: "bronze", Name: "Bronze", AssetRef: "avatars/bronze.png", RequiredPoints: 1},
			{ID: "silver", Name: "Silver", AssetRef: "avatars/silver.png", RequiredPoints: 3},
			{ID: "gold", Name: "Gold", AssetRef: "avatars/gold.png", RequiredPoints: 7},
		},
	}
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
