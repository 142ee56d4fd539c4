package speechrouter

import (
	"golang.org/x/time/rate"
)

// providerLimiter enforces a provider's RateLimit: requests per minute via a
// token bucket, in-flight calls via a semaphore. Either side may be absent.
type providerLimiter struct {
	bucket *rate.Limiter
	sem    chan struct{}
}

func newProviderLimiter(rl RateLimit) *providerLimiter {
	l := &providerLimiter{}
	if rl.RequestsPerMinute > 0 {
		burst := rl.RequestsPerMinute
		if burst > 10 {
			burst = 10
		}
		l.bucket = rate.NewLimiter(rate.Limit(float64(rl.RequestsPerMinute)/60.0), burst)
	}
	if rl.MaxConcurrent > 0 {
		l.sem = make(chan struct{}, rl.MaxConcurrent)
	}
	return l
}

// tryAcquire admits a call without blocking. On success the caller must
// release.
func (l *providerLimiter) tryAcquire() bool {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		default:
			return false
		}
	}
	if l.bucket != nil && !l.bucket.Allow() {
		if l.sem != nil {
			<-l.sem
		}
		return false
	}
	return true
}

func (l *providerLimiter) release() {
	if l.sem != nil {
		<-l.sem
	}
}
