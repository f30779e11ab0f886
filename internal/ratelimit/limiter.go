// Package ratelimit throttles API clients with one token bucket per client
// key.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle, full bucket is kept.
const staleAfter = 10 * time.Minute

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per minute
	Remaining  int           // whole tokens left
	ResetAt    time.Time     // when the bucket is full again
	RetryAfter time.Duration // zero when allowed
}

// Limiter keeps a token bucket per key.
type Limiter struct {
	perMinute int
	burst     int
	every     rate.Limit

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter returns a limiter allowing perMinute requests per key on
// average, with bursts of up to burst requests. Close must be called to stop
// its cleanup goroutine.
func NewLimiter(perMinute, burst int) *Limiter {
	l := &Limiter{
		perMinute: perMinute,
		burst:     max(burst, 1),
		every:     rate.Limit(float64(perMinute) / 60),
		buckets:   map[string]*bucket{},
		stop:      make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes a token from the bucket of key if one is available.
func (l *Limiter) Allow(key string) Result {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) Result {
	l.mu.Lock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	allowed := r.OK() && r.DelayFrom(now) == 0
	res := Result{Allowed: allowed, Limit: l.perMinute}
	if !allowed {
		if r.OK() {
			res.RetryAfter = r.DelayFrom(now)
			r.CancelAt(now)
		} else {
			res.RetryAfter = time.Minute
		}
		res.RetryAfter = max(res.RetryAfter.Round(time.Second), time.Second)
	}
	tokens := b.limiter.TokensAt(now)
	res.Remaining = max(int(math.Floor(tokens)), 0)
	if l.every > 0 {
		missing := float64(l.burst) - tokens
		res.ResetAt = now.Add(time.Duration(missing / float64(l.every) * float64(time.Second)))
	} else {
		res.ResetAt = now
	}
	return res
}

func (l *Limiter) cleanupLoop() {
	t := time.NewTicker(staleAfter)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			l.cleanup(now)
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets that are idle and full, since a new bucket would be
// identical.
func (l *Limiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
