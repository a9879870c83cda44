package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// AuthenticatedQuota is the hourly request quota with a token.
	AuthenticatedQuota = 5000

	// ProactiveRate spaces crawl requests to stay under the authenticated
	// quota (about 4300 requests per hour).
	ProactiveRate = 1.2

	// ReserveFraction of the quota is kept back for other clients sharing
	// the token. The crawl pauses until reset once remaining drops below it.
	ReserveFraction = 0.02

	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

// Quota is the last rate limit state reported by GitHub.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// reserve is the number of requests the crawl leaves untouched.
func (q Quota) reserve() int {
	return int(float64(q.Limit) * ReserveFraction)
}

// exhausted reports whether the crawl must wait for the reset at now.
func (q Quota) exhausted(now time.Time) bool {
	return q.Remaining <= q.reserve() && now.Before(q.ResetAt)
}

// RateLimiter spaces requests and pauses the crawl when the reported quota
// reaches its reserve.
type RateLimiter struct {
	bucket *rate.Limiter

	mu    sync.Mutex
	quota Quota
}

// NewRateLimiter creates a limiter allowing perSecond requests. A
// non-positive rate disables spacing.
func NewRateLimiter(perSecond float64) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(limit, 1),
		quota:  Quota{Limit: AuthenticatedQuota, Remaining: AuthenticatedQuota},
	}
}

// Wait blocks until the next request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	q := r.Quota()
	if !q.exhausted(time.Now()) {
		return nil
	}
	log.Warn("quota at %d of %d, pausing until %s", q.Remaining, q.Limit, q.ResetAt.Format(time.RFC3339))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Until(q.ResetAt)):
		return nil
	}
}

// UpdateFromResponse records the quota headers of resp. Missing or
// malformed headers leave the previous values.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := headerInt(resp.Header, HeaderRateRemaining); ok {
		r.quota.Remaining = int(v)
	}
	if v, ok := headerInt(resp.Header, HeaderRateLimit); ok {
		r.quota.Limit = int(v)
	}
	if v, ok := headerInt(resp.Header, HeaderRateReset); ok {
		r.quota.ResetAt = time.Unix(v, 0)
	}
}

// Quota returns the last reported quota.
func (r *RateLimiter) Quota() Quota {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quota
}

func headerInt(h http.Header, key string) (int64, bool) {
	s := h.Get(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}
