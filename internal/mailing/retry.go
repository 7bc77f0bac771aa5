package mailing

import "time"

// backoffCap bounds the transient-failure backoff so one flaky recipient
// cannot stall a worker for minutes.
const backoffCap = 60 * time.Second

type decision struct {
	retry bool
	wait  time.Duration
	// budget reports whether this retry consumes a slot of the per-recipient
	// retry budget. Server-dictated rate-limit waits are exempt: the wait is
	// mandated, not chosen, and must be honored however often it occurs.
	budget bool
}

// decide applies the retry policy to one classified outcome.
//
//	Success                      -> terminal Sent
//	RateLimited(d)               -> wait exactly d, retry, budget-exempt
//	Transient, attempts < max    -> wait min(60s, 2^attempts * unit), retry
//	Transient, attempts >= max   -> terminal Failed
//	Permanent                    -> terminal Failed, no wait
//
// attempts counts budget-consuming retries already granted for this
// recipient. unit is the backoff base, one second in production; tests
// shrink it.
func decide(c classification, attempts, maxRetries int, unit time.Duration) decision {
	switch c.class {
	case classRateLimited:
		return decision{retry: true, wait: c.retryAfter}
	case classTransient:
		if attempts >= maxRetries {
			return decision{}
		}
		return decision{retry: true, wait: transientBackoff(attempts, unit), budget: true}
	default:
		// Success and Permanent are terminal.
		return decision{}
	}
}

func transientBackoff(attempts int, unit time.Duration) time.Duration {
	if unit <= 0 {
		unit = time.Second
	}
	ceiling := 60 * unit
	// 2^attempts units, capped. Guard the shift: 2^6 already exceeds the cap.
	if attempts >= 6 {
		return ceiling
	}
	d := unit << uint(attempts)
	if d > ceiling {
		d = ceiling
	}
	return d
}
