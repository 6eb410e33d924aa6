package scrub

import "math"

// RunQuota is a signed budget of object-store operations granted to one
// housekeeping epoch. Negative quotas behave as exhausted.
type RunQuota int64

// ConsumedFromOps converts an unsigned operation count into a quota delta,
// saturating at the maximum representable value.
func ConsumedFromOps(ops uint64) RunQuota {
	if ops > math.MaxInt64 {
		return RunQuota(math.MaxInt64)
	}
	return RunQuota(ops)
}

// Remaining returns the quota left after consuming the given amount, clamped
// at zero so the result never goes negative.
func (q RunQuota) Remaining(consumed RunQuota) RunQuota {
	if consumed >= q {
		return 0
	}
	return q - consumed
}

// Exhausted reports whether no budget is left.
func (q RunQuota) Exhausted() bool {
	return q <= 0
}
