package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter keeps one token bucket per user: burst n, refilled evenly over
// window.
type userLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newUserLimiter returns nil when limiting is disabled.
func newUserLimiter(n int, window time.Duration) *userLimiter {
	if n <= 0 || window <= 0 {
		return nil
	}
	return &userLimiter{
		every:    rate.Every(window / time.Duration(n)),
		burst:    n,
		limiters: map[string]*rate.Limiter{},
	}
}

func (l *userLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
