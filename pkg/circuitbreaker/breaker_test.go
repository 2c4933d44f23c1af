package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripsAtThreshold(t *testing.T) {
	cb := New(true, 3, time.Minute, time.Minute)

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())

	assert.True(t, cb.RecordFailure())
	assert.True(t, cb.IsOpen())

	state := cb.State()
	assert.True(t, state.Open)
	assert.Equal(t, 3, state.FailureCount)
	assert.False(t, state.TrippedAt.IsZero())
}

func TestDisabledNeverOpens(t *testing.T) {
	cb := New(false, 1, time.Minute, time.Minute)

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())
	assert.False(t, cb.IsEnabled())
}

func TestFailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	cb := New(true, 2, 10*time.Millisecond, time.Minute)

	assert.False(t, cb.RecordFailure())
	time.Sleep(25 * time.Millisecond)

	// The first failure has aged out, so this one starts a fresh count.
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())
	assert.Equal(t, 1, cb.State().FailureCount)
}

func TestHalfOpensAfterResetTimeout(t *testing.T) {
	cb := New(true, 1, time.Minute, 10*time.Millisecond)

	require.True(t, cb.RecordFailure())
	require.True(t, cb.IsOpen())

	time.Sleep(25 * time.Millisecond)

	assert.False(t, cb.IsOpen())
	assert.Equal(t, 0, cb.State().FailureCount)

	// A failure after half-opening trips it again immediately at threshold 1.
	assert.True(t, cb.RecordFailure())
}

func TestSuccessClearsFailureCount(t *testing.T) {
	cb := New(true, 3, time.Minute, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.State().FailureCount)

	// Two more failures stay under the threshold thanks to the reset.
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())
}

func TestSuccessDoesNotCloseTrippedCircuit(t *testing.T) {
	cb := New(true, 1, time.Minute, time.Minute)

	require.True(t, cb.RecordFailure())
	cb.RecordSuccess()
	assert.True(t, cb.IsOpen())
}

func TestResetClosesCircuit(t *testing.T) {
	cb := New(true, 1, time.Minute, time.Minute)

	require.True(t, cb.RecordFailure())
	cb.Reset()

	assert.False(t, cb.IsOpen())
	state := cb.State()
	assert.False(t, state.Open)
	assert.Equal(t, 0, state.FailureCount)
}
