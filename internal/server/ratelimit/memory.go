package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket refilled continuously at Requests/Window.
type bucket struct {
	tokens float64
	seen   time.Time
}

func (b *bucket) take(now time.Time, capacity, perSecond float64) bool {
	b.tokens = min(capacity, b.tokens+now.Sub(b.seen).Seconds()*perSecond)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

type memoryLimiter struct {
	cfg       Config
	capacity  float64
	perSecond float64
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryLimiter returns a process-local Limiter. Idle buckets are swept
// every two windows until Stop is called.
func NewMemoryLimiter(cfg Config) Stoppable {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	l := &memoryLimiter{
		cfg:       cfg,
		capacity:  float64(cfg.Requests),
		perSecond: float64(cfg.Requests) / cfg.Window.Seconds(),
		now:       time.Now,
		buckets:   make(map[string]*bucket),
		stop:      make(chan struct{}),
	}
	go l.sweepLoop(2 * cfg.Window)
	return l
}

func (l *memoryLimiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	}
	return b.take(now, l.capacity, l.perSecond)
}

func (l *memoryLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

func (l *memoryLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(every)
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets idle for longer than idle; they would be full anyway.
func (l *memoryLimiter) sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *memoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *memoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stoppable is a Limiter owning a background sweeper.
type Stoppable interface {
	Limiter
	Stop()
}
