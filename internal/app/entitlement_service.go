package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cimillas/course-entitlements/internal/clock"
	"github.com/cimillas/course-entitlements/internal/domain"
	"github.com/sirupsen/logrus"
)

type EntitlementRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEntitlement(ctx context.Context, id string) (domain.Entitlement, error)
	GetEntitlementForUpdate(ctx context.Context, id string) (domain.Entitlement, error)
	CreateEntitlement(ctx context.Context, ent domain.Entitlement) error
	SetEnrollment(ctx context.Context, id string, enrollmentID *string) error
	// SetExpiredAt reports false when an expiry was already recorded.
	SetExpiredAt(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteEntitlement(ctx context.Context, id string) error
	ListUnexpired(ctx context.Context, afterID string, limit int) ([]domain.Entitlement, error)
}

type PolicyStore interface {
	GetPolicy(ctx context.Context, id string) (domain.Policy, error)
}

type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error)
	DeactivateEnrollment(ctx context.Context, id string) error
}

type CourseCatalog interface {
	GetCourse(ctx context.Context, id string) (domain.Course, error)
}

type CertificateStore interface {
	HasDownloadableCertificate(ctx context.Context, userID, courseID string) (bool, error)
}

// Stores groups the collaborators an EntitlementService reads from.
type Stores struct {
	Entitlements EntitlementRepository
	Policies     PolicyStore
	Enrollments  EnrollmentStore
	Courses      CourseCatalog
	Certificates CertificateStore
}

type EntitlementService struct {
	stores Stores
	clock  clock.Clock
	log    logrus.FieldLogger
}

func NewEntitlementService(stores Stores, clk clock.Clock, opts ...EntitlementServiceOption) *EntitlementService {
	svc := &EntitlementService{
		stores: stores,
		clock:  clk,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type EntitlementServiceOption func(*EntitlementService)

// WithLogger overrides the logger used for state transitions.
func WithLogger(l logrus.FieldLogger) EntitlementServiceOption {
	return func(s *EntitlementService) {
		if l != nil {
			s.log = l
		}
	}
}

// Eligibility summarizes what can currently be done with an entitlement.
type Eligibility struct {
	EntitlementID       string
	Redeemed            bool
	Redeemable          bool
	Refundable          bool
	Regainable          bool
	DaysUntilExpiration int
	ExpiredAt           *time.Time
}

// snapshot is an entitlement with every record its rules depend on.
type snapshot struct {
	ent        domain.Entitlement
	policy     domain.Policy
	redemption *domain.Redemption
}

func (s *EntitlementService) load(ctx context.Context, ent domain.Entitlement) (snapshot, error) {
	policy, err := s.policyFor(ctx, ent)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{ent: ent, policy: policy}
	if !ent.IsRedeemed() {
		return snap, nil
	}

	enrollment, err := s.stores.Enrollments.GetEnrollment(ctx, *ent.EnrollmentID)
	if err != nil {
		return snapshot{}, err
	}
	course, err := s.stores.Courses.GetCourse(ctx, enrollment.CourseID)
	if err != nil {
		return snapshot{}, err
	}
	snap.redemption = &domain.Redemption{Enrollment: enrollment, Course: course}
	return snap, nil
}

func (s *EntitlementService) policyFor(ctx context.Context, ent domain.Entitlement) (domain.Policy, error) {
	if ent.PolicyID == "" {
		return domain.DefaultPolicy(), nil
	}
	return s.stores.Policies.GetPolicy(ctx, ent.PolicyID)
}

func (s *EntitlementService) loadByID(ctx context.Context, id string) (snapshot, error) {
	ent, err := s.stores.Entitlements.GetEntitlement(ctx, id)
	if err != nil {
		return snapshot{}, err
	}
	return s.load(ctx, ent)
}

func (s *EntitlementService) regainable(ctx context.Context, snap snapshot, now time.Time) (bool, error) {
	if snap.redemption == nil {
		return false, nil
	}
	hasCert, err := s.stores.Certificates.HasDownloadableCertificate(ctx, snap.ent.UserID, snap.redemption.Enrollment.CourseID)
	if err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	return domain.IsRegainable(snap.policy, snap.redemption, hasCert, now), nil
}

func (s *EntitlementService) IsRedeemable(ctx context.Context, id string) (bool, error) {
	snap, err := s.loadByID(ctx, id)
	if err != nil {
		return false, err
	}
	return domain.IsRedeemable(snap.ent, snap.policy, s.clock.Now()), nil
}

func (s *EntitlementService) IsRefundable(ctx context.Context, id string) (bool, error) {
	snap, err := s.loadByID(ctx, id)
	if err != nil {
		return false, err
	}
	return domain.IsRefundable(snap.ent, snap.policy, snap.redemption, s.clock.Now()), nil
}

func (s *EntitlementService) IsRegainable(ctx context.Context, id string) (bool, error) {
	snap, err := s.loadByID(ctx, id)
	if err != nil {
		return false, err
	}
	return s.regainable(ctx, snap, s.clock.Now())
}

func (s *EntitlementService) DaysUntilExpiration(ctx context.Context, id string) (int, error) {
	snap, err := s.loadByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return domain.DaysUntilExpiration(snap.ent, snap.policy, s.clock.Now()), nil
}

// Eligibility evaluates every rule at once. It never writes back expiration.
func (s *EntitlementService) Eligibility(ctx context.Context, id string) (Eligibility, error) {
	snap, err := s.loadByID(ctx, id)
	if err != nil {
		return Eligibility{}, err
	}
	now := s.clock.Now()
	regainable, err := s.regainable(ctx, snap, now)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		EntitlementID:       snap.ent.ID,
		Redeemed:            snap.redemption != nil,
		Redeemable:          domain.IsRedeemable(snap.ent, snap.policy, now),
		Refundable:          domain.IsRefundable(snap.ent, snap.policy, snap.redemption, now),
		Regainable:          regainable,
		DaysUntilExpiration: domain.DaysUntilExpiration(snap.ent, snap.policy, now),
		ExpiredAt:           snap.ent.ExpiredAt,
	}, nil
}

// EvaluateAndPersistExpiration checks expiration at the current instant and
// records it the first time it is observed. It returns the cached expiry, or
// nil when the entitlement has not expired.
func (s *EntitlementService) EvaluateAndPersistExpiration(ctx context.Context, id string) (*time.Time, error) {
	at, _, err := s.evaluateExpiration(ctx, id)
	return at, err
}

// evaluateExpiration also reports whether this call recorded the expiry.
func (s *EntitlementService) evaluateExpiration(ctx context.Context, id string) (*time.Time, bool, error) {
	var (
		result  *time.Time
		written bool
	)
	err := s.stores.Entitlements.WithTx(ctx, func(txCtx context.Context) error {
		ent, err := s.stores.Entitlements.GetEntitlementForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		result, written, err = s.expireLocked(txCtx, ent)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, written, nil
}

// expireLocked must run inside a transaction holding the entitlement row.
func (s *EntitlementService) expireLocked(ctx context.Context, ent domain.Entitlement) (*time.Time, bool, error) {
	if ent.ExpiredAt != nil {
		return ent.ExpiredAt, false, nil
	}
	snap, err := s.load(ctx, ent)
	if err != nil {
		return nil, false, err
	}
	now := s.clock.Now()
	if !domain.IsExpired(snap.ent, snap.policy, snap.redemption, now) {
		return nil, false, nil
	}
	written, err := s.stores.Entitlements.SetExpiredAt(ctx, ent.ID, now)
	if err != nil {
		return nil, false, err
	}
	if !written {
		stored, err := s.stores.Entitlements.GetEntitlement(ctx, ent.ID)
		if err != nil {
			return nil, false, err
		}
		return stored.ExpiredAt, false, nil
	}
	s.log.WithFields(logrus.Fields{
		"entitlement_id": ent.ID,
		"user_id":        ent.UserID,
		"redeemed":       snap.redemption != nil,
	}).Info("entitlement expired")
	return &now, true, nil
}

type CreateEntitlementInput struct {
	UserID      string
	CourseID    string
	Mode        string
	OrderNumber *string
	PolicyID    string
}

func (s *EntitlementService) CreateEntitlement(ctx context.Context, in CreateEntitlementInput) (domain.Entitlement, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return domain.Entitlement{}, domain.ErrUserRequired
	}
	if strings.TrimSpace(in.CourseID) == "" {
		return domain.Entitlement{}, domain.ErrCourseRequired
	}
	policyID := in.PolicyID
	if policyID == "" {
		policyID = domain.DefaultPolicyID
	}
	if _, err := s.stores.Policies.GetPolicy(ctx, policyID); err != nil {
		return domain.Entitlement{}, err
	}
	mode := in.Mode
	if mode == "" {
		mode = "verified"
	}

	ent := domain.Entitlement{
		ID:          newUUID(),
		UserID:      in.UserID,
		CourseID:    in.CourseID,
		Mode:        mode,
		OrderNumber: in.OrderNumber,
		PolicyID:    policyID,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.stores.Entitlements.CreateEntitlement(ctx, ent); err != nil {
		return domain.Entitlement{}, err
	}
	return ent, nil
}

// Redeem spends the entitlement on an existing enrollment.
func (s *EntitlementService) Redeem(ctx context.Context, id, enrollmentID string) (domain.Entitlement, error) {
	if enrollmentID == "" {
		return domain.Entitlement{}, domain.ErrInvalidID
	}
	now := s.clock.Now()
	var result domain.Entitlement

	err := s.stores.Entitlements.WithTx(ctx, func(txCtx context.Context) error {
		ent, err := s.stores.Entitlements.GetEntitlementForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if ent.IsRedeemed() {
			return domain.ErrAlreadyRedeemed
		}
		if ent.ExpiredAt != nil {
			return domain.ErrEntitlementExpired
		}
		policy, err := s.policyFor(txCtx, ent)
		if err != nil {
			return err
		}
		if !domain.IsRedeemable(ent, policy, now) {
			return domain.ErrNotRedeemable
		}

		enrollment, err := s.stores.Enrollments.GetEnrollment(txCtx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.UserID != ent.UserID {
			return domain.ErrEnrollmentUserMismatch
		}
		if !enrollment.IsActive {
			return domain.ErrEnrollmentInactive
		}

		if err := s.stores.Entitlements.SetEnrollment(txCtx, ent.ID, &enrollmentID); err != nil {
			return err
		}
		ent.EnrollmentID = &enrollmentID
		result = ent
		return nil
	})
	if err != nil {
		return domain.Entitlement{}, err
	}

	s.log.WithFields(logrus.Fields{
		"entitlement_id": result.ID,
		"enrollment_id":  enrollmentID,
	}).Info("entitlement redeemed")
	return result, nil
}

// Regain reverses a redemption, deactivating the enrollment it was spent on.
func (s *EntitlementService) Regain(ctx context.Context, id string) (domain.Entitlement, error) {
	var result domain.Entitlement
	var released string

	err := s.stores.Entitlements.WithTx(ctx, func(txCtx context.Context) error {
		ent, err := s.stores.Entitlements.GetEntitlementForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !ent.IsRedeemed() {
			return domain.ErrNotRedeemed
		}
		snap, err := s.load(txCtx, ent)
		if err != nil {
			return err
		}
		ok, err := s.regainable(txCtx, snap, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotRegainable
		}

		released, err = s.release(txCtx, ent)
		if err != nil {
			return err
		}
		ent.EnrollmentID = nil
		result = ent
		return nil
	})
	if err != nil {
		return domain.Entitlement{}, err
	}

	s.log.WithFields(logrus.Fields{
		"entitlement_id": result.ID,
		"enrollment_id":  released,
	}).Info("entitlement regained")
	return result, nil
}

// Refund removes a refundable entitlement. A redeemed one is released from its
// enrollment first.
func (s *EntitlementService) Refund(ctx context.Context, id string) error {
	var userID string
	err := s.stores.Entitlements.WithTx(ctx, func(txCtx context.Context) error {
		ent, err := s.stores.Entitlements.GetEntitlementForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		snap, err := s.load(txCtx, ent)
		if err != nil {
			return err
		}
		if !domain.IsRefundable(snap.ent, snap.policy, snap.redemption, s.clock.Now()) {
			return domain.ErrNotRefundable
		}
		if ent.IsRedeemed() {
			if _, err := s.release(txCtx, ent); err != nil {
				return err
			}
		}
		userID = ent.UserID
		return s.stores.Entitlements.DeleteEntitlement(txCtx, ent.ID)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"entitlement_id": id,
		"user_id":        userID,
	}).Info("entitlement refunded")
	return nil
}

func (s *EntitlementService) release(ctx context.Context, ent domain.Entitlement) (string, error) {
	enrollmentID := *ent.EnrollmentID
	if err := s.stores.Enrollments.DeactivateEnrollment(ctx, enrollmentID); err != nil && !errors.Is(err, domain.ErrEnrollmentNotFound) {
		return "", err
	}
	if err := s.stores.Entitlements.SetEnrollment(ctx, ent.ID, nil); err != nil {
		return "", err
	}
	return enrollmentID, nil
}

const defaultSweepBatch = 500

// SweepExpired walks every entitlement without a cached expiry and records
// expiration where it is now due. It returns the number newly expired.
func (s *EntitlementService) SweepExpired(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	expired := 0
	afterID := ""
	for {
		page, err := s.stores.Entitlements.ListUnexpired(ctx, afterID, batch)
		if err != nil {
			return expired, fmt.Errorf("list unexpired: %w", err)
		}
		for _, ent := range page {
			if err := ctx.Err(); err != nil {
				return expired, err
			}
			_, written, err := s.evaluateExpiration(ctx, ent.ID)
			if err != nil {
				if errors.Is(err, domain.ErrEntitlementNotFound) {
					continue
				}
				return expired, fmt.Errorf("expire %s: %w", ent.ID, err)
			}
			if written {
				expired++
			}
		}
		if len(page) < batch {
			return expired, nil
		}
		afterID = page[len(page)-1].ID
	}
}
