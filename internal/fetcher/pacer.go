package fetcher

import (
	"time"

	"golang.org/x/time/rate"
)

// NewPacer builds the shared request limiter. One token every delay keeps
// page fetches and artifact downloads spaced out across the whole run.
// A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
