package security

import (
	"sync"
	"time"
)

// RateLimiter implements a fixed-window token bucket per client
type RateLimiter struct {
	buckets map[string]*bucket
	mutex   sync.RWMutex

	maxRequests int
	window      time.Duration
	idleTTL     time.Duration
	now         func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// bucket represents a token bucket for a specific client
type bucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a rate limiter allowing maxRequests per window
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets:     make(map[string]*bucket),
		maxRequests: maxRequests,
		window:      window,
		idleTTL:     10 * window,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// Allow checks if a request from the given client should be allowed
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.maxRequests <= 0 {
		return true
	}

	rl.mutex.RLock()
	b, exists := rl.buckets[clientID]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if b, exists = rl.buckets[clientID]; !exists {
			b = &bucket{tokens: rl.maxRequests, lastRefill: rl.now()}
			rl.buckets[clientID] = b
		}
		rl.mutex.Unlock()
	}

	return rl.consume(b)
}

func (rl *RateLimiter) consume(b *bucket) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := rl.now()
	b.lastSeen = now
	if now.Sub(b.lastRefill) >= rl.window {
		b.tokens = rl.maxRequests
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// StartCleanup evicts idle buckets until Stop is called
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.cleanupOldBuckets()
			case <-rl.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanupOldBuckets removes buckets that haven't been used recently
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	for clientID, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.buckets, clientID)
		}
		bucket.mutex.Unlock()
	}
}

// ActiveClients returns the number of tracked clients
func (rl *RateLimiter) ActiveClients() int {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()
	return len(rl.buckets)
}
