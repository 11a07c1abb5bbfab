// Package circuitbreaker stops a batch export from calling the rating API
// once the API is clearly down.
//
// A breaker trips after a run of consecutive provider failures. While it is
// open every call fails fast with ErrCircuitOpen, so the remaining players of
// a batch become placeholder rows immediately instead of each waiting out
// its own retries. After the cool-down a single trial call is let through;
// its outcome closes or reopens the breaker.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling the API while the breaker
	// is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned to concurrent callers while the trial
	// call of a half-open breaker is in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// settings are fixed at construction.
type settings struct {
	name          string
	threshold     int
	recoveries    int
	trials        int
	cooldown      time.Duration
	onStateChange func(name string, from, to State)
	isFailure     func(error) bool
	now           func() time.Time
}

// Option configures a breaker.
type Option func(*settings)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close the breaker.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.recoveries = n
		}
	}
}

// WithTimeout sets the cool-down spent open before a trial call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithMaxHalfOpenRequests bounds concurrent trial calls.
func WithMaxHalfOpenRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.trials = n
		}
	}
}

// WithOnStateChange registers a transition callback. It runs with the
// breaker locked and must not call back into it.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) {
		s.onStateChange = fn
	}
}

// WithIsFailure replaces the failure classifier. It only sees non-nil
// errors.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) {
		if fn != nil {
			s.isFailure = fn
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Counts are cumulative since construction or the last Reset.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	Rejected             int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use by the batch workers.
type CircuitBreaker struct {
	cfg settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	inFlight int
}

// New creates a closed breaker. Defaults: 5 failures to open, 30s
// cool-down, 1 trial call, 2 trial successes to close.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := settings{
		name:       name,
		threshold:  5,
		recoveries: 2,
		trials:     1,
		cooldown:   30 * time.Second,
		isFailure:  func(error) bool { return true },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{cfg: cfg}
}

// ProviderBreaker returns the breaker guarding the rating API. threshold
// should exceed the batch concurrency so that a few unlucky players do not
// trip it for everyone else. One successful trial call closes it.
func ProviderBreaker(threshold int, cooldown time.Duration, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("rating-api",
		WithFailureThreshold(threshold),
		WithSuccessThreshold(1),
		WithTimeout(cooldown),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}

// Execute calls fn unless the breaker rejects the call, and records the
// outcome. Rejections return ErrCircuitOpen or ErrTooManyRequests.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.now().Sub(cb.openedAt) >= cb.cfg.cooldown {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.inFlight < cb.cfg.trials {
			cb.inFlight++
			return nil
		}
		cb.counts.Rejected++
		return ErrTooManyRequests
	default:
		cb.counts.Rejected++
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	// A cancelled export says nothing about the API.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	if err == nil || !cb.cfg.isFailure(err) {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.recoveries {
			cb.transition(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if cb.state == StateHalfOpen ||
		(cb.state == StateClosed && cb.counts.ConsecutiveFailures >= cb.cfg.threshold) {
		cb.openedAt = cb.cfg.now()
		cb.transition(StateOpen)
	}
}

// transition requires mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.inFlight = 0

	if cb.cfg.onStateChange != nil {
		cb.cfg.onStateChange(cb.cfg.name, from, to)
	}
}

// State returns the current position. An open breaker whose cool-down has
// elapsed still reports open until the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears the counters without firing the
// state change callback.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.inFlight = 0
	cb.openedAt = time.Time{}
}

// Name identifies the breaker in logs.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.name
}
