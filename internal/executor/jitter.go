package executor

import (
	"math/rand"
	"time"
)

// backoffDelay computes backoff-interval * attempt * (1 +/- jitter-percent/100)
// per spec.md §4.2 step 3, using a uniformly distributed jitter centered on
// the nominal interval. jitterPercent must be in [0, 100]; that invariant is
// enforced by New, not here.
func backoffDelay(interval time.Duration, attempt int, jitterPercent int, rng *rand.Rand) time.Duration {
	if jitterPercent == 0 {
		return time.Duration(int64(interval) * int64(attempt))
	}
	// jitter in [0, 2*jitterPercent], recentered to [-jitterPercent, jitterPercent]
	jitter := rng.Intn(2*jitterPercent + 1)
	factor := 1.0 + float64(jitter-jitterPercent)/100.0
	base := float64(interval) * float64(attempt)
	return time.Duration(base * factor)
}
