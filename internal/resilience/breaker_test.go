package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives breaker time explicitly.
type fakeClock struct{ at time.Time }

func (c *fakeClock) now() time.Time          { return c.at }
func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{at: time.Unix(1_700_000_000, 0)}
	b := NewBreaker("reasoner", cfg)
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterExactlyNConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{ConsecutiveFailures: 5, Cooldown: 30 * time.Second})

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		require.Equal(t, StateClosed, b.State(), "failure %d should keep the circuit closed", i+1)
	}
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{ConsecutiveFailures: 3, Cooldown: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateClosed, b.State(), "only consecutive failures count")

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenTrialAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{ConsecutiveFailures: 1, Cooldown: 30 * time.Second})

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.Error(t, b.Allow())

	clock.advance(30 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	// Exactly one trial call gets through; concurrent callers are rejected.
	require.NoError(t, b.Allow())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// Trial success closes the circuit.
	b.RecordSuccess()
	require.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopensAndResetsCooldown(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{ConsecutiveFailures: 1, Cooldown: 30 * time.Second})

	b.RecordFailure()
	clock.advance(30 * time.Second)
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	// Cooldown restarted: 29s later still open, 30s later half-open again.
	clock.advance(29 * time.Second)
	require.Equal(t, StateOpen, b.State())
	clock.advance(time.Second)
	require.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_StateString(t *testing.T) {
	require.Equal(t, "closed", StateClosed.String())
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "half-open", StateHalfOpen.String())
}
