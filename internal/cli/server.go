package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	pgstore "assessment-service/internal/infra/postgres"
	redisstore "assessment-service/internal/infra/redis"
	transport "assessment-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

type quizSource interface {
	app.QuizRepository
	app.QuizLister
}

func runServer(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" && cfg.Postgres.Migrate {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,

			ContextTimeoutEnabled: true,
		})
		defer redisClient.Close()
	}

	var (
		loader  memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizIndex())
		results app.ResultStore
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgstore.NewQuizLoader(pool)

		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		results = pgstore.NewResultStore(db)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes quizSource
	var sessions app.SessionRepository
	if redisClient != nil {
		quizzes = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
		sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.Grace, time.Minute))
		if results == nil {
			results = redisstore.NewResultStore(redisClient)
		}
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		sessions = memory.NewSessionStore()
	}
	if results == nil {
		results = memory.NewResultStore()
	}

	service := app.NewQuizService(sessions, quizzes, quizzes, results, app.ServiceOptions{
		SubmitTimeout: config.TTLDuration(cfg.Attempt.SubmitTimeout, 10*time.Second),
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      transport.NewRouter(service),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", port).
			Bool("redis", redisClient != nil).
			Bool("postgres", cfg.Postgres.URL != "").
			Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func sampleQuizIndex() map[string]domain.Quiz {
	index := make(map[string]domain.Quiz)
	for _, quiz := range sampleQuizzes() {
		index[quiz.ID] = quiz
	}
	return index
}

// sampleQuizzes is the demo data served when no database is configured.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:              "quiz-1",
			OwnerID:         "demo",
			CourseID:        "math-101",
			Title:           "Arithmetic warm-up",
			Description:     "Three quick questions.",
			DueDate:         time.Date(2026, 12, 1, 17, 0, 0, 0, time.UTC),
			DurationSeconds: 300,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOptionIndex: 1, Points: 10},
				{ID: "q2", Prompt: "What is 3 * 3?", Options: []string{"6", "9", "12"}, CorrectOptionIndex: 1, Points: 10},
				{ID: "q3", Prompt: "What is 10 / 2?", Options: []string{"5", "2", "20"}, CorrectOptionIndex: 0, Points: 10},
			},
		},
		{
			ID:              "quiz-2",
			OwnerID:         "demo",
			CourseID:        "geo-100",
			Title:           "Capitals",
			DueDate:         time.Date(2026, 11, 15, 17, 0, 0, 0, time.UTC),
			DurationSeconds: 120,
			Questions: []domain.Question{
				{ID: "g1", Prompt: "Capital of France?", Options: []string{"Lyon", "Paris"}, CorrectOptionIndex: 1, Points: 5},
				{ID: "g2", Prompt: "Capital of Japan?", Options: []string{"Tokyo", "Osaka"}, CorrectOptionIndex: 0, Points: 5},
			},
		},
	}
}
