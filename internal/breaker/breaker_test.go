package breaker

import (
	"errors"
	"testing"
	"time"

	testutils "github.com/astghikaramyan/resource-service/internal/testing"
	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *Breaker {
	return New(DefaultConfig(), WithClock(clock.Now))
}

func fail(b *Breaker) error {
	return b.Do(func() error { return errBoom })
}

func succeed(b *Breaker) error {
	return b.Do(func() error { return nil })
}

func TestBreakerStaysClosedBelowMinimumCalls(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	assert.Error(t, fail(b))
	assert.Error(t, fail(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerOpensAtFailureRateThreshold(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	assert.NoError(t, succeed(b))
	assert.Error(t, fail(b))
	assert.Error(t, fail(b))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerFailsFastWhileOpen(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCallNotPermitted)
	assert.False(t, called)
}

func TestBreakerTransitionsToHalfOpenAfterWait(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerClosesAfterSuccessfulTrials(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	clock.Advance(10 * time.Second)

	assert.NoError(t, succeed(b))
	assert.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensAfterFailedTrials(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	clock.Advance(10 * time.Second)

	assert.Error(t, fail(b))
	assert.Error(t, fail(b))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerLimitsHalfOpenTrialCalls(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	config := DefaultConfig()
	config.PermittedCallsInHalfOpenState = 1
	b := New(config, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		fail(b)
	}
	clock.Advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	// Simulate an in-flight trial: acquire the only permitted slot.
	assert.NoError(t, b.acquirePermission())
	err := b.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrCallNotPermitted)
}

func TestBreakerClosingResetsWindow(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	clock.Advance(10 * time.Second)
	succeed(b)
	succeed(b)
	assert.Equal(t, StateClosed, b.State())

	// A fresh window must require MinimumCalls again before re-opening.
	assert.Error(t, fail(b))
	assert.Error(t, fail(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerNotifiesStateChangeListener(t *testing.T) {
	testutils.SkipIfIntegration(t)

	clock := &fakeClock{now: time.Now()}
	var transitions [][2]State
	b := New(DefaultConfig(), WithClock(clock.Now), WithStateChangeListener(func(from State, to State) {
		transitions = append(transitions, [2]State{from, to})
	}))

	for i := 0; i < 3; i++ {
		fail(b)
	}
	clock.Advance(10 * time.Second)
	succeed(b)
	succeed(b)

	assert.Equal(t, [][2]State{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, transitions)
}
