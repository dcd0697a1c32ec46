package core

import (
	"fmt"
	"sync"
)

// TurnLimiter enforces a maximum number of allowed model calls per run. Teams
// increment it once per speaker selection and once per member turn so a
// misbehaving selector cannot loop forever.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewTurnLimiter(max int) *TurnLimiter {
	return &TurnLimiter{max: max}
}

// Increment increases the call counter and returns an error if the limit is exceeded.
func (tl *TurnLimiter) Increment() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.count++
	if tl.max > 0 && tl.count > tl.max {
		return fmt.Errorf("exceeded max model calls: %d", tl.max)
	}

	return nil
}

// Count returns the current number of calls made.
func (tl *TurnLimiter) Count() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.count
}

// Remaining returns how many calls are left before hitting the limit.
func (tl *TurnLimiter) Remaining() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.max == 0 {
		return -1 // unlimited
	}

	return tl.max - tl.count
}

// Reset clears the counter, typically between team runs.
func (tl *TurnLimiter) Reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.count = 0
}
