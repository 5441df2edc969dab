package compressor

import (
	"sync"
	"time"
)

// retryWindow bounds how long a call's retry count is remembered before it
// resets, so escalation only tracks retries within one logical request
// burst rather than accumulating forever for a cache key.
const retryWindow = 5 * time.Minute

// RetryTracker counts retries per cache key within a sliding window and
// derives the token-budget escalation multiplier for each subsequent
// attempt, per spec.md's resolved Open Question: linear growth,
// multiplier = 1 + (n-1) * tokenMultiplier, where n is the attempt number
// (1 on the first call, 2 on the first retry, and so on).
type RetryTracker struct {
	mu    sync.Mutex
	seen  map[string]*retryState
}

type retryState struct {
	count    int
	lastSeen time.Time
}

// NewRetryTracker builds an empty tracker.
func NewRetryTracker() *RetryTracker {
	return &RetryTracker{seen: make(map[string]*retryState)}
}

// Attempt records another attempt for key and returns its 1-based attempt
// number. A key that hasn't been seen within retryWindow starts fresh.
func (t *RetryTracker) Attempt(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	st, ok := t.seen[key]
	if !ok || now.Sub(st.lastSeen) > retryWindow {
		st = &retryState{}
		t.seen[key] = st
	}
	st.count++
	st.lastSeen = now
	return st.count
}

// Reset clears the retry count for key, called once a call succeeds.
func (t *RetryTracker) Reset(key string) {
	t.mu.Lock()
	delete(t.seen, key)
	t.mu.Unlock()
}

// Escalation computes the token-budget multiplier for the given attempt
// number under tokenMultiplier (e.g. 0.5 means each retry adds 50% more
// output-token budget). Compress always passes 0.5.
func Escalation(attempt int, tokenMultiplier float64) float64 {
	if attempt <= 1 {
		return 1
	}
	return 1 + float64(attempt-1)*tokenMultiplier
}
