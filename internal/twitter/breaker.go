package twitter

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting requests after
// repeated upstream failures.
var ErrCircuitOpen = errors.New("twitter api circuit open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker trips after consecutive API failures so a degraded upstream
// is probed instead of hammered. Rate-limit responses do not count as
// failures; those are handled by pausing the batch.
type circuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int

	failures      int
	lastFailure   time.Time
	state         breakerState
	halfOpenCount int
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: 5,
		resetTimeout:     30 * time.Second,
		halfOpenMax:      2,
		state:            breakerClosed,
	}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = breakerHalfOpen
			cb.halfOpenCount = 0
			return true
		}
		return false
	case breakerHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == breakerHalfOpen {
		cb.state = breakerClosed
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.failureThreshold || cb.state == breakerHalfOpen {
		cb.state = breakerOpen
		cb.halfOpenCount = 0
	}
}

func (cb *circuitBreaker) stateString() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
