package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	Closed   State = iota // Normal operation, calls pass through.
	Open                  // Failing, calls are rejected immediately.
	HalfOpen              // Testing recovery, probe calls allowed through.
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker guards calls to the ledger node. It opens after maxFailures
// consecutive errors, rejects calls for resetTimeout, then half-opens
// and requires successThreshold consecutive successes to close again.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	maxFailures      int
	successThreshold int
	resetTimeout     time.Duration
	lastFailureTime  time.Time
}

// New creates a Breaker.
func New(maxFailures, successThreshold int, resetTimeout time.Duration) *Breaker {
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &Breaker{
		state:            Closed,
		maxFailures:      maxFailures,
		successThreshold: successThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Execute runs fn through the circuit breaker. If the circuit is open,
// ErrCircuitOpen is returned without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == Open {
		if time.Since(b.lastFailureTime) > b.resetTimeout {
			b.state = HalfOpen
			b.successes = 0
		} else {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		b.lastFailureTime = time.Now()
		if b.state == HalfOpen || b.failures >= b.maxFailures {
			b.state = Open
		}
		return err
	}

	b.failures = 0
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = Closed
		}
	default:
		b.state = Closed
	}
	return nil
}

// GetState returns the current state of the breaker.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
