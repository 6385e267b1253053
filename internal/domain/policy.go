package domain

import "time"

const day = 24 * time.Hour

const (
	DefaultExpirationPeriod = 450 * day
	DefaultRefundPeriod     = 60 * day
	DefaultRegainPeriod     = 14 * day
)

// DefaultPolicyID identifies the policy row seeded by migrations.
const DefaultPolicyID = "00000000-0000-0000-0000-000000000450"

// Policy holds the windows governing expiration, refund and regain.
type Policy struct {
	ID               string
	Name             string
	ExpirationPeriod time.Duration
	RefundPeriod     time.Duration
	RegainPeriod     time.Duration
}

// DefaultPolicy returns the policy applied when an entitlement has none.
func DefaultPolicy() Policy {
	return Policy{
		ID:               DefaultPolicyID,
		Name:             "default",
		ExpirationPeriod: DefaultExpirationPeriod,
		RefundPeriod:     DefaultRefundPeriod,
		RegainPeriod:     DefaultRegainPeriod,
	}
}

// ExpirationDays is the expiration period in whole days.
func (p Policy) ExpirationDays() int {
	return floorDays(p.ExpirationPeriod)
}

// floorDays converts d to whole days, rounding toward negative infinity.
func floorDays(d time.Duration) int {
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	return int(days)
}
