package twitter

import (
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := newCircuitBreaker()

	if cb.stateString() != "closed" {
		t.Errorf("expected initial state to be closed, got %s", cb.stateString())
	}
	if !cb.allow() {
		t.Error("expected allow() to return true in closed state")
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := newCircuitBreaker()

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure()
	}

	if cb.stateString() != "open" {
		t.Errorf("expected state to be open, got %s", cb.stateString())
	}
	if cb.allow() {
		t.Error("expected allow() to return false in open state")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := newCircuitBreaker()

	cb.recordFailure()
	cb.recordFailure()
	cb.recordSuccess()
	cb.recordFailure()
	cb.recordFailure()

	if cb.stateString() != "closed" {
		t.Errorf("expected state to still be closed, got %s", cb.stateString())
	}
}

func TestCircuitBreaker_HalfOpenToOpenOnFailure(t *testing.T) {
	cb := newCircuitBreaker()
	cb.resetTimeout = 10 * time.Millisecond

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure()
	}
	time.Sleep(20 * time.Millisecond)
	if !cb.allow() {
		t.Fatal("expected allow() after reset timeout")
	}

	cb.recordFailure()
	if cb.stateString() != "open" {
		t.Errorf("expected state to be open after failure in half-open, got %s", cb.stateString())
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := newCircuitBreaker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cb.allow()
			if i%2 == 0 {
				cb.recordSuccess()
			} else {
				cb.recordFailure()
			}
		}(i)
	}
	wg.Wait()

	state := cb.stateString()
	if state != "closed" && state != "open" && state != "half-open" {
		t.Errorf("invalid state after concurrent access: %s", state)
	}
}
