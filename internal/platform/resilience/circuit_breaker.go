package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker refuses traffic.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker trips after a run of consecutive failures, refuses
// traffic for a cooldown window, then admits a bounded number of probe
// requests. All probes must succeed before the breaker closes again.
type CircuitBreaker struct {
	threshold  int
	cooldown   time.Duration
	probeLimit int

	mu        sync.Mutex
	failures  int
	tripped   bool
	trippedAt time.Time
	probing   int
	probeOK   int
	clock     func() time.Time
}

func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration, halfOpenMaxReq int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if openTimeout <= 0 {
		openTimeout = 15 * time.Second
	}
	if halfOpenMaxReq < 1 {
		halfOpenMaxReq = 1
	}

	return &CircuitBreaker{
		threshold:  failureThreshold,
		cooldown:   openTimeout,
		probeLimit: halfOpenMaxReq,
		clock:      time.Now,
	}
}

// Allow reports whether a request may proceed. During the half-open
// window it also reserves a probe slot; callers must follow up with
// RecordSuccess or RecordFailure to release it.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return nil
	}
	if b.clock().Sub(b.trippedAt) < b.cooldown {
		return ErrCircuitOpen
	}
	if b.probing >= b.probeLimit {
		return ErrCircuitOpen
	}
	b.probing++
	return nil
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		b.failures = 0
		return
	}
	if b.probing == 0 {
		return
	}
	b.probing--
	b.probeOK++
	if b.probeOK >= b.probeLimit && b.probing == 0 {
		b.reset()
	}
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
		return
	}
	// Any failure while tripped, probe or not, restarts the cooldown.
	b.trip()
}

func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case !b.tripped:
		return CircuitStateClosed
	case b.clock().Sub(b.trippedAt) >= b.cooldown:
		return CircuitStateHalfOpen
	default:
		return CircuitStateOpen
	}
}

func (b *CircuitBreaker) trip() {
	b.tripped = true
	b.trippedAt = b.clock()
	b.probing = 0
	b.probeOK = 0
}

func (b *CircuitBreaker) reset() {
	b.tripped = false
	b.trippedAt = time.Time{}
	b.failures = 0
	b.probing = 0
	b.probeOK = 0
}
