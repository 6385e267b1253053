package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/course-entitlements/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CertificateRepository struct {
	db
}

func NewCertificateRepository(pool *pgxpool.Pool) *CertificateRepository {
	return &CertificateRepository{db: db{pool: pool}}
}

func (r *CertificateRepository) HasDownloadableCertificate(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return false, domain.ErrInvalidID
	}
	const query = `
SELECT EXISTS (
	SELECT 1 FROM certificates
	WHERE user_id = $1 AND course_id = $2 AND status = $3
)`
	var ok bool
	if err := r.queryRow(ctx, query, userID, courseID, domain.CertificateStatusDownloadable).Scan(&ok); err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	return ok, nil
}
