package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCallNotPermitted is returned by Do without invoking the call while the
// breaker is open, or while the half-open trial budget is exhausted.
var ErrCallNotPermitted = errors.New("circuit breaker is open, call not permitted")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	}
	return "CLOSED"
}

type Config struct {
	// SlidingWindowSize is the number of most recent call outcomes kept
	// while closed.
	SlidingWindowSize int
	// MinimumCalls is required in the window before the failure rate is
	// evaluated at all.
	MinimumCalls int
	// FailureRateThreshold opens the breaker when reached, in percent.
	FailureRateThreshold float64
	// WaitDurationInOpenState is how long the breaker refuses calls before
	// transitioning to half-open.
	WaitDurationInOpenState time.Duration
	// PermittedCallsInHalfOpenState is the trial call budget deciding
	// whether the breaker closes again or re-opens.
	PermittedCallsInHalfOpenState int
}

func DefaultConfig() Config {
	return Config{
		SlidingWindowSize:             5,
		MinimumCalls:                  3,
		FailureRateThreshold:          50,
		WaitDurationInOpenState:       10 * time.Second,
		PermittedCallsInHalfOpenState: 2,
	}
}

// Breaker is a count-based sliding-window circuit breaker. The ring buffer
// of recent outcomes and all state transitions live behind one mutex, so a
// single instance can be shared process-wide by every caller of the guarded
// dependency. Tests construct isolated instances.
type Breaker struct {
	config Config
	clock  func() time.Time

	mu            sync.Mutex
	state         State
	ring          []bool // true = failure
	ringSize      int
	ringNext      int
	openedAt      time.Time
	trialsStarted int
	trialsDone    int
	trialsFailed  int
	onStateChange func(from State, to State)
}

type Option func(*Breaker)

// WithClock replaces the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Breaker) {
		b.clock = clock
	}
}

// WithStateChangeListener observes transitions, e.g. for metrics.
func WithStateChangeListener(listener func(from State, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = listener
	}
}

func New(config Config, opts ...Option) *Breaker {
	b := &Breaker{
		config: config,
		clock:  time.Now,
		state:  StateClosed,
		ring:   make([]bool, config.SlidingWindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Do executes call under the breaker. While open it fails fast with
// ErrCallNotPermitted; after the open wait elapses it permits the
// configured number of trial calls half-open, then fully closes or
// re-opens depending on the trial outcomes.
func (b *Breaker) Do(call func() error) error {
	if err := b.acquirePermission(); err != nil {
		return err
	}
	err := call()
	b.recordOutcome(err != nil)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpen()
	return b.state
}

func (b *Breaker) acquirePermission() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpen()
	switch b.state {
	case StateOpen:
		return ErrCallNotPermitted
	case StateHalfOpen:
		if b.trialsStarted >= b.config.PermittedCallsInHalfOpenState {
			return ErrCallNotPermitted
		}
		b.trialsStarted++
	}
	return nil
}

func (b *Breaker) recordOutcome(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.ring[b.ringNext] = failed
		b.ringNext = (b.ringNext + 1) % b.config.SlidingWindowSize
		if b.ringSize < b.config.SlidingWindowSize {
			b.ringSize++
		}
		if b.ringSize >= b.config.MinimumCalls && b.failureRate() >= b.config.FailureRateThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.trialsDone++
		if failed {
			b.trialsFailed++
		}
		if b.trialsDone >= b.config.PermittedCallsInHalfOpenState {
			trialFailureRate := float64(b.trialsFailed) / float64(b.trialsDone) * 100
			if trialFailureRate >= b.config.FailureRateThreshold {
				b.transition(StateOpen)
			} else {
				b.transition(StateClosed)
			}
		}
	case StateOpen:
		// A call admitted before the breaker opened finished late.
		// Its outcome no longer influences the window.
	}
}

func (b *Breaker) maybeTransitionToHalfOpen() {
	if b.state == StateOpen && b.clock().Sub(b.openedAt) >= b.config.WaitDurationInOpenState {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) failureRate() float64 {
	failures := 0
	for i := 0; i < b.ringSize; i++ {
		if b.ring[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.ringSize) * 100
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.clock()
	case StateHalfOpen:
		b.trialsStarted = 0
		b.trialsDone = 0
		b.trialsFailed = 0
	case StateClosed:
		b.ring = make([]bool, b.config.SlidingWindowSize)
		b.ringSize = 0
		b.ringNext = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
