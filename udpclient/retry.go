package udpclient

import "time"

// RetryPolicy governs retransmission of a UDP request awaiting a reply: the
// request is resent with an exponentially growing timeout until MaxAttempts
// is reached, at which point the call fails with errs.Timeout.
//
// BEP 15 specifies a reference 15·2ⁿ schedule but does not mandate it;
// this type is the configuration knob for picking a different one.
type RetryPolicy struct {
	// BaseTimeout is the timeout for the first attempt.
	BaseTimeout time.Duration
	// Multiplier scales the timeout on each retry (2.0 doubles it).
	Multiplier float64
	// MaxAttempts is the total number of sends attempted, including the
	// first. MaxAttempts exceeded without a valid reply is a Timeout.
	MaxAttempts int
}

// Timeout returns the timeout to use for the attempt at index n (0-based).
func (p RetryPolicy) Timeout(n int) time.Duration {
	d := float64(p.BaseTimeout)
	for i := 0; i < n; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// DefaultRetryPolicy is a schedule tightened to fit comfortably within a
// typical per-scrape timeout budget: 2s, 4s, 8s, 16s across 4 attempts,
// used in place of BEP 15's reference schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseTimeout: 2 * time.Second,
		Multiplier:  2,
		MaxAttempts: 4,
	}
}

// DefaultBEP15RetryPolicy is BEP 15's reference schedule: 15, 30, 60, 120,
// 240 seconds across 5 attempts. Prefer this when talking to trackers known
// to be slow or when strict spec compliance matters more than call latency.
func DefaultBEP15RetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseTimeout: 15 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}
