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

func strPtr(s string) *string {
	return &s
}

func TestEntitlementRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewEntitlementRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("CreateEntitlement persists and GetEntitlement returns it", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		created := time.Now().UTC().Truncate(time.Microsecond)
		ent := domain.Entitlement{
			ID:          uuid.NewString(),
			UserID:      "user-1",
			CourseID:    "course-v1:edX+Demo",
			Mode:        "verified",
			OrderNumber: strPtr("ORDER-1"),
			PolicyID:    domain.DefaultPolicyID,
			CreatedAt:   created,
		}
		require.NoError(t, repo.CreateEntitlement(ctx, ent))
		assert.ErrorIs(t, repo.CreateEntitlement(ctx, ent), domain.ErrEntitlementExists)

		got, err := repo.GetEntitlement(ctx, ent.ID)
		require.NoError(t, err)
		assert.Equal(t, ent.ID, got.ID)
		assert.Equal(t, "ORDER-1", *got.OrderNumber)
		assert.Nil(t, got.EnrollmentID)
		assert.Nil(t, got.ExpiredAt)
		assert.True(t, got.CreatedAt.Equal(created))
	})

	t.Run("CreateEntitlement rejects unknown policy", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := repo.CreateEntitlement(ctx, domain.Entitlement{
			ID:        uuid.NewString(),
			UserID:    "user-1",
			CourseID:  "course",
			Mode:      "verified",
			PolicyID:  uuid.NewString(),
			CreatedAt: time.Now(),
		})
		assert.ErrorIs(t, err, domain.ErrPolicyNotFound)
	})

	t.Run("GetEntitlement maps missing and malformed ids", func(t *testing.T) {
		ctx := context.Background()
		_, err := repo.GetEntitlement(ctx, "00000000-0000-0000-0000-000000000001")
		assert.ErrorIs(t, err, domain.ErrEntitlementNotFound)

		_, err = repo.GetEntitlement(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("SetEnrollment links and unlinks", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		courseID := testutil.InsertCourse(t, ctx, pool, "Demo", time.Now())
		enrollmentID := testutil.InsertEnrollment(t, ctx, pool, "user-1", courseID, time.Now())
		id := testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "user-1", CourseID: "course"})
		other := testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "user-1", CourseID: "course"})

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := repo.GetEntitlementForUpdate(txCtx, id); err != nil {
				return err
			}
			return repo.SetEnrollment(txCtx, id, &enrollmentID)
		})
		require.NoError(t, err)

		got, err := repo.GetEntitlement(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.EnrollmentID)
		assert.Equal(t, enrollmentID, *got.EnrollmentID)

		assert.ErrorIs(t, repo.SetEnrollment(ctx, other, &enrollmentID), domain.ErrEnrollmentLinked)
		assert.ErrorIs(t, repo.SetEnrollment(ctx, other, strPtr(uuid.NewString())), domain.ErrEnrollmentNotFound)

		require.NoError(t, repo.SetEnrollment(ctx, id, nil))
		got, err = repo.GetEntitlement(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.EnrollmentID)
	})

	t.Run("SetExpiredAt never overwrites", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "user-1", CourseID: "course"})

		first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		written, err := repo.SetExpiredAt(ctx, id, first)
		require.NoError(t, err)
		assert.True(t, written)
		written, err = repo.SetExpiredAt(ctx, id, first.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, written)

		got, err := repo.GetEntitlement(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.ExpiredAt)
		assert.True(t, got.ExpiredAt.Equal(first))
	})

	t.Run("ListUnexpired pages in id order", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		expired := time.Now()
		testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "u", CourseID: "c", ExpiredAt: &expired})
		for i := 0; i < 3; i++ {
			testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "u", CourseID: "c"})
		}

		page, err := repo.ListUnexpired(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Less(t, page[0].ID, page[1].ID)

		rest, err := repo.ListUnexpired(ctx, page[1].ID, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Greater(t, rest[0].ID, page[1].ID)

		_, err = repo.ListUnexpired(ctx, "bogus", 2)
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("DeleteEntitlement", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "user-1", CourseID: "course"})

		require.NoError(t, repo.DeleteEntitlement(ctx, id))
		assert.ErrorIs(t, repo.DeleteEntitlement(ctx, id), domain.ErrEntitlementNotFound)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertEntitlement(t, ctx, pool, domain.Entitlement{UserID: "user-1", CourseID: "course"})

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := repo.SetExpiredAt(txCtx, id, time.Now()); err != nil {
				return err
			}
			return domain.ErrNotRefundable
		})
		assert.ErrorIs(t, err, domain.ErrNotRefundable)

		got, err := repo.GetEntitlement(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.ExpiredAt)
	})
}
