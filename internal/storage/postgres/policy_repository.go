package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/course-entitlements/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PolicyRepository struct {
	db
}

func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db{pool: pool}}
}

func (r *PolicyRepository) GetPolicy(ctx context.Context, id string) (domain.Policy, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Policy{}, domain.ErrInvalidID
	}
	const query = `
SELECT id, name, expiration_days, refund_days, regain_days
FROM entitlement_policies
WHERE id = $1`

	var (
		p                          domain.Policy
		expiration, refund, regain int
	)
	err := r.queryRow(ctx, query, id).Scan(&p.ID, &p.Name, &expiration, &refund, &regain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Policy{}, domain.ErrPolicyNotFound
		}
		return domain.Policy{}, fmt.Errorf("get policy: %w", err)
	}
	p.ExpirationPeriod = days(expiration)
	p.RefundPeriod = days(refund)
	p.RegainPeriod = days(regain)
	return p, nil
}

// CreatePolicy stores p. Periods are truncated to whole days.
func (r *PolicyRepository) CreatePolicy(ctx context.Context, p domain.Policy) error {
	const stmt = `
INSERT INTO entitlement_policies (id, name, expiration_days, refund_days, regain_days)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, p.ID, p.Name, wholeDays(p.ExpirationPeriod), wholeDays(p.RefundPeriod), wholeDays(p.RegainPeriod))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create policy: %w", err)
	}
	return nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
