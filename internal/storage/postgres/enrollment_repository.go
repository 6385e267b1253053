package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/course-entitlements/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository reads enrollments and the courses they belong to.
type EnrollmentRepository struct {
	db
}

func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{db: db{pool: pool}}
}

func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Enrollment{}, domain.ErrInvalidID
	}
	const query = `SELECT id, user_id, course_id, mode, is_active, created_at FROM enrollments WHERE id = $1`

	var e domain.Enrollment
	err := r.queryRow(ctx, query, id).Scan(&e.ID, &e.UserID, &e.CourseID, &e.Mode, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Enrollment{}, domain.ErrEnrollmentNotFound
		}
		return domain.Enrollment{}, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepository) DeactivateEnrollment(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidID
	}
	tag, err := r.exec(ctx, `UPDATE enrollments SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEnrollmentNotFound
	}
	return nil
}

func (r *EnrollmentRepository) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Course{}, domain.ErrInvalidID
	}
	var c domain.Course
	err := r.queryRow(ctx, `SELECT id, name, starts_at FROM courses WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.StartsAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Course{}, domain.ErrCourseNotFound
		}
		return domain.Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}
