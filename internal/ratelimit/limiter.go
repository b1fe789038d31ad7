package ratelimit

import (
	"sync"
	"time"
)

// Class partitions limits by traffic kind: the public read surface gets a
// generous budget, ingestion a tight one.
type Class string

const (
	ClassStream Class = "stream"
	ClassIngest Class = "ingest"
)

type Limits struct {
	Window time.Duration
	Stream int // requests per window per IP on stream/download
	Ingest int // requests per window per IP on the webhook
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   int64 // unix seconds the window rolls over
	ResetIn   int64 // seconds until then
}

type bucket struct {
	class Class
	ip    string
}

type window struct {
	start int64
	count int
}

// Limiter is a fixed-window, per-IP inbound request limiter. This guards
// the service's own surface; the remote store's cooldown is handled
// separately by the session manager.
type Limiter struct {
	limits  Limits
	windowS int64

	mu      sync.Mutex
	buckets map[bucket]window
}

func New(limits Limits) *Limiter {
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	return &Limiter{
		limits:  limits,
		windowS: int64(limits.Window.Seconds()),
		buckets: make(map[bucket]window, 1024),
	}
}

// Allow consumes one slot for the ip within the class budget. The caller
// passes now so tests can drive the clock.
func (l *Limiter) Allow(now time.Time, class Class, ip string) Decision {
	limit := l.limit(class)
	if limit <= 0 {
		// Unconfigured class: let everything through.
		return Decision{Allowed: true, ResetAt: now.Unix()}
	}

	unixNow := now.Unix()
	windowStart := unixNow / l.windowS * l.windowS
	resetAt := windowStart + l.windowS

	key := bucket{class: class, ip: ip}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.buckets[key]
	if !ok || w.start != windowStart {
		w = window{start: windowStart}
	}
	allowed := w.count < limit
	if allowed {
		w.count++
	}
	l.buckets[key] = w

	if len(l.buckets) > 50000 {
		l.evictBefore(windowStart - l.windowS)
	}

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	resetIn := resetAt - unixNow
	if resetIn < 0 {
		resetIn = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		ResetIn:   resetIn,
	}
}

func (l *Limiter) limit(class Class) int {
	switch class {
	case ClassStream:
		return l.limits.Stream
	case ClassIngest:
		return l.limits.Ingest
	default:
		return 0
	}
}

func (l *Limiter) evictBefore(olderThan int64) {
	for k, w := range l.buckets {
		if w.start <= olderThan {
			delete(l.buckets, k)
		}
	}
}
