package app

import (
	"context"
	"sort"
	"time"

	"github.com/cimillas/course-entitlements/internal/domain"
)

// fakeStore backs every collaborator interface with in-memory maps.
type fakeStore struct {
	entitlements map[string]domain.Entitlement
	policies     map[string]domain.Policy
	enrollments  map[string]domain.Enrollment
	courses      map[string]domain.Course
	certificates []domain.Certificate

	txCount      int
	expiredWrite int
	certErr      error

	// afterList and afterLock simulate another writer acting between reads.
	afterList func()
	afterLock func(id string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entitlements: map[string]domain.Entitlement{},
		policies:     map[string]domain.Policy{domain.DefaultPolicyID: domain.DefaultPolicy()},
		enrollments:  map[string]domain.Enrollment{},
		courses:      map[string]domain.Course{},
	}
}

func (f *fakeStore) stores() Stores {
	return Stores{
		Entitlements: f,
		Policies:     f,
		Enrollments:  f,
		Courses:      f,
		Certificates: f,
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txCount++
	return fn(ctx)
}

func (f *fakeStore) GetEntitlement(ctx context.Context, id string) (domain.Entitlement, error) {
	ent, ok := f.entitlements[id]
	if !ok {
		return domain.Entitlement{}, domain.ErrEntitlementNotFound
	}
	return ent, nil
}

func (f *fakeStore) GetEntitlementForUpdate(ctx context.Context, id string) (domain.Entitlement, error) {
	ent, err := f.GetEntitlement(ctx, id)
	if err == nil && f.afterLock != nil {
		f.afterLock(id)
	}
	return ent, err
}

func (f *fakeStore) CreateEntitlement(ctx context.Context, ent domain.Entitlement) error {
	if _, ok := f.entitlements[ent.ID]; ok {
		return domain.ErrEntitlementExists
	}
	f.entitlements[ent.ID] = ent
	return nil
}

func (f *fakeStore) SetEnrollment(ctx context.Context, id string, enrollmentID *string) error {
	ent, ok := f.entitlements[id]
	if !ok {
		return domain.ErrEntitlementNotFound
	}
	ent.EnrollmentID = enrollmentID
	f.entitlements[id] = ent
	return nil
}

func (f *fakeStore) SetExpiredAt(ctx context.Context, id string, at time.Time) (bool, error) {
	ent, ok := f.entitlements[id]
	if !ok || ent.ExpiredAt != nil {
		return false, nil
	}
	ent.ExpiredAt = &at
	f.entitlements[id] = ent
	f.expiredWrite++
	return true, nil
}

func (f *fakeStore) DeleteEntitlement(ctx context.Context, id string) error {
	if _, ok := f.entitlements[id]; !ok {
		return domain.ErrEntitlementNotFound
	}
	delete(f.entitlements, id)
	return nil
}

func (f *fakeStore) ListUnexpired(ctx context.Context, afterID string, limit int) ([]domain.Entitlement, error) {
	ids := make([]string, 0, len(f.entitlements))
	for id, ent := range f.entitlements {
		if ent.ExpiredAt == nil && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Entitlement, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.entitlements[id])
	}
	if f.afterList != nil {
		f.afterList()
	}
	return out, nil
}

func (f *fakeStore) GetPolicy(ctx context.Context, id string) (domain.Policy, error) {
	p, ok := f.policies[id]
	if !ok {
		return domain.Policy{}, domain.ErrPolicyNotFound
	}
	return p, nil
}

func (f *fakeStore) GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return e, nil
}

func (f *fakeStore) DeactivateEnrollment(ctx context.Context, id string) error {
	e, ok := f.enrollments[id]
	if !ok {
		return domain.ErrEnrollmentNotFound
	}
	e.IsActive = false
	f.enrollments[id] = e
	return nil
}

func (f *fakeStore) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return c, nil
}

func (f *fakeStore) HasDownloadableCertificate(ctx context.Context, userID, courseID string) (bool, error) {
	if f.certErr != nil {
		return false, f.certErr
	}
	for _, c := range f.certificates {
		if c.UserID == userID && c.CourseID == courseID && c.Status == domain.CertificateStatusDownloadable {
			return true, nil
		}
	}
	return false, nil
}
