package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/course-entitlements/internal/app"
	"github.com/cimillas/course-entitlements/internal/clock"
	"github.com/cimillas/course-entitlements/internal/config"
	"github.com/cimillas/course-entitlements/internal/storage/postgres"
	redisstore "github.com/cimillas/course-entitlements/internal/storage/redis"
	"github.com/cimillas/course-entitlements/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const startupTimeout = 5 * time.Second

// runtime holds what every subcommand needs after flags are parsed.
type runtime struct {
	cfg config.Config
	log *logrus.Logger
}

func newRootCmd(rt *runtime) *cobra.Command {
	var (
		databaseURL string
		logLevel    string
		logFormat   string
	)

	root := &cobra.Command{
		Use:           "entitlements",
		Short:         "Course entitlement eligibility service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			boot := logrus.StandardLogger()
			config.LoadEnvFile(boot)
			cfg, err := config.Load(boot)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("database-url") {
				cfg.DatabaseURL = databaseURL
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.log = logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (overrides DATABASE_URL)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")

	root.AddCommand(newServeCmd(rt), newMigrateCmd(rt), newSweepCmd(rt), newPolicyCmd(rt), newCertCacheCmd(rt))
	return root
}

func (rt *runtime) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, rt.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := migrations.Apply(ctx, pool, rt.log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return pool, nil
}

// openRedis returns nil when no REDIS_URL is configured.
func (rt *runtime) openRedis(ctx context.Context) (*redis.Client, error) {
	if rt.cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(rt.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (rt *runtime) newService(pool *pgxpool.Pool, rdb *redis.Client) *app.EntitlementService {
	enrollments := postgres.NewEnrollmentRepository(pool)
	var certificates app.CertificateStore = postgres.NewCertificateRepository(pool)
	if rdb != nil {
		certificates = redisstore.NewCertificateCache(rdb, certificates, "", rt.cfg.CertCacheTTL)
	}
	stores := app.Stores{
		Entitlements: postgres.NewEntitlementRepository(pool),
		Policies:     postgres.NewPolicyRepository(pool),
		Enrollments:  enrollments,
		Courses:      enrollments,
		Certificates: certificates,
	}
	return app.NewEntitlementService(stores, clock.NewSystem(), app.WithLogger(rt.log))
}
