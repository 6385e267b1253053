package domain

import "time"

// Enrollment binds a user to a concrete course run.
type Enrollment struct {
	ID        string
	UserID    string
	CourseID  string
	Mode      string
	IsActive  bool
	CreatedAt time.Time
}

// Course is a schedulable course run.
type Course struct {
	ID       string
	Name     string
	StartsAt time.Time
}

// HasStarted reports whether the course start is at or before now.
func (c Course) HasStarted(now time.Time) bool {
	return !c.StartsAt.After(now)
}

type CertificateStatus string

const (
	CertificateStatusDownloadable CertificateStatus = "downloadable"
	CertificateStatusGenerating   CertificateStatus = "generating"
	CertificateStatusNotPassing   CertificateStatus = "notpassing"
	CertificateStatusUnavailable  CertificateStatus = "unavailable"
)

// Certificate is a generated course certificate for a user.
type Certificate struct {
	ID        string
	UserID    string
	CourseID  string
	Mode      string
	Status    CertificateStatus
	CreatedAt time.Time
}

// Redemption is the enrollment an entitlement was spent on, with its course.
type Redemption struct {
	Enrollment Enrollment
	Course     Course
}
