package domain

import "time"

// Entitlement is a purchased right to enroll in some run of a course.
// Linking it to an enrollment redeems it.
type Entitlement struct {
	ID          string
	UserID      string
	CourseID    string
	Mode        string
	OrderNumber *string
	// EnrollmentID is set while the entitlement is redeemed.
	EnrollmentID *string
	PolicyID     string
	// ExpiredAt caches the first instant expiration was observed. Never cleared.
	ExpiredAt *time.Time
	CreatedAt time.Time
}

// IsRedeemed reports whether the entitlement is linked to an enrollment.
func (e Entitlement) IsRedeemed() bool {
	return e.EnrollmentID != nil && *e.EnrollmentID != ""
}
