package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("test", 2, 30*time.Second, nil).WithClock(func() time.Time { return now })

	cb.RecordFailure()
	assert.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	now = now.Add(30 * time.Second)
	assert.Equal(t, CircuitStateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitStateOpen, cb.State(), "failed probe reopens")

	now = now.Add(30 * time.Second)
	assert.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitStateClosed, cb.State())
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute, nil)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, CircuitStateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitStateOpen, cb.State())
	cb.Reset()
	assert.Equal(t, CircuitStateClosed, cb.State())
}
