package ratelimit

import (
	"sync"
	"time"
)

// breakerState is one of the three states in the per-domain circuit breaker
// state machine.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// tripThreshold is the number of consecutive failures that opens the
// breaker even absent a 403/429 status.
const tripThreshold = 3

// circuitBreaker is one domain's Closed/Open/HalfOpen state.
type circuitBreaker struct {
	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	cooldown time.Duration
	nowFn    func() time.Time
}

func newCircuitBreaker(cooldown time.Duration, nowFn func() time.Time) *circuitBreaker {
	return &circuitBreaker{state: breakerClosed, cooldown: cooldown, nowFn: nowFn}
}

// allow reports whether a request may proceed, advancing Open -> HalfOpen
// once the cooldown has elapsed.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.nowFn().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	case breakerHalfOpen:
		// A HalfOpen trial is already in flight; further callers wait.
		return false
	default:
		return false
	}
}

// recordSuccess resets the failure counter and closes the breaker,
// regardless of which state it was observed in (a HalfOpen trial that
// succeeds closes the circuit).
func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = breakerClosed
}

// recordFailure advances the consecutive-failure counter and trips the
// breaker open when statusCode is 403/429 or the counter reaches
// tripThreshold. A failure observed while HalfOpen always reopens with a
// fresh cooldown.
func (b *circuitBreaker) recordFailure(statusCode int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == breakerHalfOpen || statusCode == 403 || statusCode == 429 || b.failures >= tripThreshold {
		b.state = breakerOpen
		b.openedAt = b.nowFn()
	}
}
