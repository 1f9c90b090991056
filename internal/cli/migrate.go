package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"assessment-service/internal/config"
	pgstore "assessment-service/internal/infra/postgres"
	pgmigrations "assessment-service/internal/infra/postgres/migrations"
	redisstore "assessment-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			if seed {
				return seedSampleQuizzes(cmd.Context(), cfg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the demo quizzes after migrating")
	return cmd
}

func openBunDB(url string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBunDB(cfg.Postgres.URL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info().Msg("no new migrations")
		return nil
	}
	log.Info().Str("group", group.String()).Msg("migrations applied")
	return nil
}

func seedSampleQuizzes(ctx context.Context, cfg config.Config) error {
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	var cache *redisstore.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,

			ContextTimeoutEnabled: true,
		})
		defer client.Close()
		cache = redisstore.NewQuizRepository(client, loader, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
	}

	for _, quiz := range sampleQuizzes() {
		if err := loader.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed %s: %w", quiz.ID, err)
		}
		// running servers must not keep serving the old definition
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.ID); err != nil {
				log.Warn().Err(err).Str("quiz_id", quiz.ID).Msg("invalidate cached quiz")
			}
		}
		log.Info().Str("quiz_id", quiz.ID).Msg("quiz seeded")
	}
	return nil
}
