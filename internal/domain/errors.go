package domain

import "errors"

var (
	ErrEntitlementNotFound    = errors.New("entitlement not found")
	ErrPolicyNotFound         = errors.New("policy not found")
	ErrEnrollmentNotFound     = errors.New("enrollment not found")
	ErrCourseNotFound         = errors.New("course not found")
	ErrInvalidID              = errors.New("invalid id")
	ErrUserRequired           = errors.New("user id required")
	ErrCourseRequired         = errors.New("course id required")
	ErrEntitlementExists      = errors.New("entitlement already exists")
	ErrAlreadyRedeemed        = errors.New("entitlement already redeemed")
	ErrNotRedeemed            = errors.New("entitlement not redeemed")
	ErrNotRedeemable          = errors.New("entitlement not redeemable")
	ErrNotRefundable          = errors.New("entitlement not refundable")
	ErrNotRegainable          = errors.New("entitlement not regainable")
	ErrEntitlementExpired     = errors.New("entitlement expired")
	ErrEnrollmentUserMismatch = errors.New("enrollment belongs to another user")
	ErrEnrollmentLinked       = errors.New("enrollment already linked to an entitlement")
	ErrEnrollmentInactive     = errors.New("enrollment is not active")
)
