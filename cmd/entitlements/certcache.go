package main

import (
	"errors"

	redisstore "github.com/cimillas/course-entitlements/internal/storage/redis"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCertCacheCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert-cache",
		Short: "Inspect the Redis certificate cache",
	}

	var userID, courseID string
	forget := &cobra.Command{
		Use:   "forget",
		Short: "Drop the cached certificate answer for a user and course",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || courseID == "" {
				return errors.New("--user and --course are required")
			}
			ctx := cmd.Context()
			rdb, err := rt.openRedis(ctx)
			if err != nil {
				return err
			}
			if rdb == nil {
				rt.log.Warn("REDIS_URL not set, nothing cached")
				return nil
			}
			defer rdb.Close()

			cache := redisstore.NewCertificateCache(rdb, nil, "", rt.cfg.CertCacheTTL)
			if err := cache.Forget(ctx, userID, courseID); err != nil {
				return err
			}
			rt.log.WithFields(logrus.Fields{"user_id": userID, "course_id": courseID}).Info("certificate cache entry dropped")
			return nil
		},
	}
	forget.Flags().StringVar(&userID, "user", "", "user id")
	forget.Flags().StringVar(&courseID, "course", "", "course run id")

	cmd.AddCommand(forget)
	return cmd
}
