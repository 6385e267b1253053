package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cimillas/course-entitlements/internal/domain"
	"github.com/cimillas/course-entitlements/internal/storage/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type policyFlags struct {
	id             string
	name           string
	expirationDays int
	refundDays     int
	regainDays     int
}

func (f policyFlags) policy() (domain.Policy, error) {
	name := strings.TrimSpace(f.name)
	if name == "" {
		return domain.Policy{}, errors.New("--name is required")
	}
	if f.expirationDays <= 0 || f.refundDays < 0 || f.regainDays < 0 {
		return domain.Policy{}, errors.New("expiration days must be positive and refund/regain days non-negative")
	}
	id := f.id
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return domain.Policy{}, domain.ErrInvalidID
	}
	const day = 24 * time.Hour
	return domain.Policy{
		ID:               id,
		Name:             name,
		ExpirationPeriod: time.Duration(f.expirationDays) * day,
		RefundPeriod:     time.Duration(f.refundDays) * day,
		RegainPeriod:     time.Duration(f.regainDays) * day,
	}, nil
}

func newPolicyCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage entitlement policies",
	}

	defaults := domain.DefaultPolicy()
	flags := policyFlags{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Store a new policy and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.policy()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := rt.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.NewPolicyRepository(pool).CreatePolicy(ctx, p); err != nil {
				return fmt.Errorf("create policy: %w", err)
			}
			rt.log.WithField("policy_id", p.ID).Info("policy created")
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	create.Flags().StringVar(&flags.id, "id", "", "policy UUID (generated when empty)")
	create.Flags().StringVar(&flags.name, "name", "", "human-readable policy name")
	create.Flags().IntVar(&flags.expirationDays, "expiration-days", defaults.ExpirationDays(), "days until an entitlement expires")
	create.Flags().IntVar(&flags.refundDays, "refund-days", int(defaults.RefundPeriod/(24*time.Hour)), "refund window in days")
	create.Flags().IntVar(&flags.regainDays, "regain-days", int(defaults.RegainPeriod/(24*time.Hour)), "regain window in days")

	cmd.AddCommand(create)
	return cmd
}
