package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	cb := NewCircuitBreaker(cfg)
	clock := &fakeClock{t: time.Now()}
	cb.now = clock.now
	return cb, clock
}

func score(cb *CircuitBreaker, err error) error {
	_, callErr := ExecuteVal(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "scored", err
	})
	return callErr
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for range 3 {
		require.Error(t, score(cb, eris.New("scoring down")))
	}
	assert.Equal(t, CircuitOpen, cb.State())

	// Calls are rejected without reaching the backend.
	calls := 0
	_, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (string, error) {
		calls++
		return "scored", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	require.Error(t, score(cb, eris.New("scoring down")))
	require.Error(t, score(cb, eris.New("scoring down")))
	require.NoError(t, score(cb, nil))
	require.Error(t, score(cb, eris.New("scoring down")))
	require.Error(t, score(cb, eris.New("scoring down")))

	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ProbeClosesAfterResetTimeout(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	require.Error(t, score(cb, eris.New("scoring down")))
	require.Equal(t, CircuitOpen, cb.State())

	clock.advance(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// The probe succeeds and traffic flows again.
	require.NoError(t, score(cb, nil))
	assert.Equal(t, CircuitClosed, cb.State())
	require.NoError(t, score(cb, nil))
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	require.Error(t, score(cb, eris.New("scoring down")))
	require.Error(t, score(cb, eris.New("scoring down")))
	require.Equal(t, CircuitOpen, cb.State())

	clock.advance(2 * time.Minute)
	require.Error(t, score(cb, eris.New("still down")))
	assert.Equal(t, CircuitOpen, cb.State())

	// The clock has not advanced again, so the circuit rejects outright.
	err := score(cb, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_OpenErrorIsNotRetried(t *testing.T) {
	// An open circuit must fail a page immediately rather than have the
	// retry loop sleep through its budget.
	assert.False(t, IsTransient(ErrCircuitOpen))
}

func TestNewCircuitBreaker_FillsDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	assert.Equal(t, 5, cb.cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.cfg.ResetTimeout)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
