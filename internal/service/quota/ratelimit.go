package quota

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RateLimiter is an in-process sliding-window request limiter, one window per
// user. State is per-instance and lost on restart; the worst case after a
// restart is a transient relaxation of the limit, never a tightening.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[uuid.UUID][]time.Time
	limit    int
	window   time.Duration

	now func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[uuid.UUID][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// TryAcquire evicts timestamps that left the window, then either records the
// request and allows it, or denies it with the number of seconds until the
// oldest recorded request exits the window.
func (rl *RateLimiter) TryAcquire(userID uuid.UUID) (allowed bool, retryAfterSeconds int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	valid := rl.requests[userID][:0]
	for _, t := range rl.requests[userID] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) < rl.limit {
		valid = append(valid, now)
		// Clock skew could otherwise grow the list past the limit.
		if len(valid) > rl.limit {
			valid = valid[len(valid)-rl.limit:]
		}
		rl.requests[userID] = valid
		return true, 0
	}

	rl.requests[userID] = valid
	oldest := valid[0]
	for _, t := range valid[1:] {
		if t.Before(oldest) {
			oldest = t
		}
	}
	retry := int(oldest.Add(rl.window).Sub(now).Seconds())
	if retry < 1 {
		retry = 1
	}
	return false, retry
}

// StartJanitor periodically drops users whose whole window has expired, so
// the map does not grow with every user ever seen.
func (rl *RateLimiter) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for id, times := range rl.requests {
		var valid []time.Time
		for _, t := range times {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) == 0 {
			delete(rl.requests, id)
		} else {
			rl.requests[id] = valid
		}
	}
}
