package main

import (
	"context"
	"fmt"

	"github.com/cimillas/course-entitlements/internal/jobs"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newSweepCmd(rt *runtime) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Record expiration for every entitlement that has aged out, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch > 0 {
				rt.cfg.SweepBatch = batch
			}
			ctx := cmd.Context()
			pool, err := rt.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb, err := rt.openRedis(ctx)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			sweeper := jobs.NewExpirationSweeper(rt.newService(pool, rdb), rt.cfg.SweepBatch, rt.log)
			if _, err := sweeper.RunOnce(ctx); err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "entitlements per page (overrides EXPIRE_SWEEP_BATCH)")
	return cmd
}

// redisPinger adapts a redis client to the readiness check.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
