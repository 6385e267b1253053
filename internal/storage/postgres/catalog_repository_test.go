package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/course-entitlements/internal/domain"
	"github.com/cimillas/course-entitlements/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewPolicyRepository(pool)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	def, err := repo.GetPolicy(ctx, domain.DefaultPolicyID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultExpirationPeriod, def.ExpirationPeriod)
	assert.Equal(t, domain.DefaultRefundPeriod, def.RefundPeriod)
	assert.Equal(t, domain.DefaultRegainPeriod, def.RegainPeriod)

	custom := domain.Policy{
		ID:               uuid.NewString(),
		Name:             "short",
		ExpirationPeriod: 30 * 24 * time.Hour,
		RefundPeriod:     7 * 24 * time.Hour,
		RegainPeriod:     3 * 24 * time.Hour,
	}
	require.NoError(t, repo.CreatePolicy(ctx, custom))

	got, err := repo.GetPolicy(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	_, err = repo.GetPolicy(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrPolicyNotFound)
	_, err = repo.GetPolicy(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestEnrollmentRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewEnrollmentRepository(pool)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	courseID := testutil.InsertCourse(t, ctx, pool, "Demo", start)
	enrollmentID := testutil.InsertEnrollment(t, ctx, pool, "user-1", courseID, start)

	course, err := repo.GetCourse(ctx, courseID)
	require.NoError(t, err)
	assert.Equal(t, "Demo", course.Name)
	assert.True(t, course.StartsAt.Equal(start))

	enr, err := repo.GetEnrollment(ctx, enrollmentID)
	require.NoError(t, err)
	assert.Equal(t, courseID, enr.CourseID)
	assert.True(t, enr.IsActive)

	require.NoError(t, repo.DeactivateEnrollment(ctx, enrollmentID))
	enr, err = repo.GetEnrollment(ctx, enrollmentID)
	require.NoError(t, err)
	assert.False(t, enr.IsActive)

	_, err = repo.GetEnrollment(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)
	_, err = repo.GetCourse(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
	assert.ErrorIs(t, repo.DeactivateEnrollment(ctx, uuid.NewString()), domain.ErrEnrollmentNotFound)
}

func TestCertificateRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCertificateRepository(pool)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	courseID := testutil.InsertCourse(t, ctx, pool, "Demo", time.Now())
	otherCourse := testutil.InsertCourse(t, ctx, pool, "Other", time.Now())
	testutil.InsertCertificate(t, ctx, pool, "user-1", courseID, domain.CertificateStatusDownloadable)
	testutil.InsertCertificate(t, ctx, pool, "user-2", courseID, domain.CertificateStatusNotPassing)

	tests := []struct {
		user, course string
		want         bool
	}{
		{"user-1", courseID, true},
		{"user-2", courseID, false},
		{"user-1", otherCourse, false},
	}
	for _, tt := range tests {
		got, err := repo.HasDownloadableCertificate(ctx, tt.user, tt.course)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "user=%s course=%s", tt.user, tt.course)
	}
}
