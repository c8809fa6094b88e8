package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls without trying
// the protected dependency.
var ErrOpen = errors.New("circuit breaker open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type Settings struct {
	Name string
	// MaxRequests is the consecutive-failure threshold that trips the
	// breaker open.
	MaxRequests int
	Interval    time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// CircuitBreaker shields a flaky dependency. After MaxRequests consecutive
// failures it fails fast for Timeout, then lets one probe call through.
type CircuitBreaker struct {
	name      string
	threshold int
	timeout   time.Duration

	mu          sync.Mutex
	state       state
	failures    int
	lastFailure time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		name:      settings.Name,
		threshold: settings.MaxRequests,
		timeout:   settings.Timeout,
		state:     stateClosed,
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != stateOpen {
		return nil
	}
	if time.Since(cb.lastFailure) <= cb.timeout {
		return fmt.Errorf("%s: %w", cb.name, ErrOpen)
	}
	cb.state = stateHalfOpen
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.threshold || cb.state == stateHalfOpen {
			cb.state = stateOpen
		}
		return
	}
	cb.state = stateClosed
	cb.failures = 0
}
