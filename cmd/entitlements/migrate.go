package main

import (
	"context"
	"fmt"

	"github.com/cimillas/course-entitlements/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()

			pool, err := pgxpool.New(ctx, rt.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to db: %w", err)
			}
			defer pool.Close()

			applied, err := migrations.Apply(ctx, pool, rt.log)
			if err != nil {
				return err
			}
			rt.log.WithField("applied", len(applied)).Info("migrations up to date")
			return nil
		},
	}
}
