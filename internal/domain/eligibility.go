package domain

import "time"

// Eligibility rules for an entitlement. Every function is pure: callers load
// the records and pass the instant to evaluate at. A nil Redemption means the
// entitlement has not been spent.

// IsRedeemable reports whether the entitlement is still inside its expiration window.
func IsRedeemable(ent Entitlement, policy Policy, now time.Time) bool {
	return now.Sub(ent.CreatedAt) < policy.ExpirationPeriod
}

// IsRefundable reports whether the entitlement can be refunded. An entitlement
// without an order number never is. Once redeemed, only the regain window and
// the course start matter.
func IsRefundable(ent Entitlement, policy Policy, r *Redemption, now time.Time) bool {
	if ent.OrderNumber == nil {
		return false
	}
	if r == nil {
		return now.Sub(ent.CreatedAt) < policy.RefundPeriod
	}
	if r.Course.HasStarted(now) {
		return false
	}
	return withinRegainWindow(policy, r, now)
}

// IsRegainable reports whether a redemption can be reversed.
func IsRegainable(policy Policy, r *Redemption, hasDownloadableCertificate bool, now time.Time) bool {
	if r == nil {
		return false
	}
	if hasDownloadableCertificate {
		return false
	}
	return withinRegainWindow(policy, r, now)
}

// DaysUntilExpiration returns the whole days left in the expiration window.
// It goes negative once the window has passed.
func DaysUntilExpiration(ent Entitlement, policy Policy, now time.Time) int {
	return policy.ExpirationDays() - floorDays(now.Sub(ent.CreatedAt))
}

// IsExpired reports whether the entitlement has expired at now. A redeemed
// entitlement also expires once its regain grace is over and the course has
// started, even inside the absolute window.
func IsExpired(ent Entitlement, policy Policy, r *Redemption, now time.Time) bool {
	if now.Sub(ent.CreatedAt) >= policy.ExpirationPeriod {
		return true
	}
	if r == nil {
		return false
	}
	return !withinRegainWindow(policy, r, now) && r.Course.HasStarted(now)
}

func withinRegainWindow(policy Policy, r *Redemption, now time.Time) bool {
	return now.Sub(r.Enrollment.CreatedAt) < policy.RegainPeriod
}
