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

type EntitlementRepository struct {
	db
}

func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepository {
	return &EntitlementRepository{db: db{pool: pool}}
}

const entitlementColumns = `id, user_id, course_id, mode, order_number, enrollment_id, policy_id, expired_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntitlement(row rowScanner) (domain.Entitlement, error) {
	var e domain.Entitlement
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Mode, &e.OrderNumber, &e.EnrollmentID, &e.PolicyID, &e.ExpiredAt, &e.CreatedAt)
	return e, err
}

func (r *EntitlementRepository) GetEntitlement(ctx context.Context, id string) (domain.Entitlement, error) {
	return r.get(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE id = $1`, id)
}

// GetEntitlementForUpdate locks the row until the surrounding transaction ends.
func (r *EntitlementRepository) GetEntitlementForUpdate(ctx context.Context, id string) (domain.Entitlement, error) {
	return r.get(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE id = $1 FOR UPDATE`, id)
}

func (r *EntitlementRepository) get(ctx context.Context, query, id string) (domain.Entitlement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Entitlement{}, domain.ErrInvalidID
	}
	e, err := scanEntitlement(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entitlement{}, domain.ErrEntitlementNotFound
		}
		return domain.Entitlement{}, fmt.Errorf("get entitlement: %w", err)
	}
	return e, nil
}

func (r *EntitlementRepository) CreateEntitlement(ctx context.Context, ent domain.Entitlement) error {
	const stmt = `
INSERT INTO entitlements (id, user_id, course_id, mode, order_number, enrollment_id, policy_id, expired_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		ent.ID,
		ent.UserID,
		ent.CourseID,
		ent.Mode,
		ent.OrderNumber,
		ent.EnrollmentID,
		ent.PolicyID,
		ent.ExpiredAt,
		ent.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrEntitlementExists
		case isForeignKeyViolation(err):
			return domain.ErrPolicyNotFound
		case isInvalidUUID(err):
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create entitlement: %w", err)
	}
	return nil
}

// SetEnrollment links the entitlement to an enrollment, or unlinks it when
// enrollmentID is nil.
func (r *EntitlementRepository) SetEnrollment(ctx context.Context, id string, enrollmentID *string) error {
	tag, err := r.exec(ctx, `UPDATE entitlements SET enrollment_id = $2 WHERE id = $1`, id, enrollmentID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrEnrollmentLinked
		case isForeignKeyViolation(err):
			return domain.ErrEnrollmentNotFound
		case isInvalidUUID(err):
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntitlementNotFound
	}
	return nil
}

// SetExpiredAt records the expiry only if none is cached yet and reports
// whether it did.
func (r *EntitlementRepository) SetExpiredAt(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.exec(ctx, `UPDATE entitlements SET expired_at = $2 WHERE id = $1 AND expired_at IS NULL`, id, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("set expired_at: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EntitlementRepository) DeleteEntitlement(ctx context.Context, id string) error {
	tag, err := r.exec(ctx, `DELETE FROM entitlements WHERE id = $1`, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete entitlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntitlementNotFound
	}
	return nil
}

// ListUnexpired pages through entitlements with no cached expiry in id order.
func (r *EntitlementRepository) ListUnexpired(ctx context.Context, afterID string, limit int) ([]domain.Entitlement, error) {
	after := uuid.Nil
	if afterID != "" {
		parsed, err := uuid.Parse(afterID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		after = parsed
	}

	rows, err := r.query(ctx, `
SELECT `+entitlementColumns+`
FROM entitlements
WHERE expired_at IS NULL AND id > $1
ORDER BY id
LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexpired: %w", err)
	}
	defer rows.Close()

	var out []domain.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unexpired: %w", err)
	}
	return out, nil
}
