package cooldown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAcquireWithinWindowReportsRetryAfter(t *testing.T) {
	clock := newClock()
	tracker := NewTrackerWithClock(clock.Now)
	key := Key{Bucket: "user:alice", Command: "markov"}

	_, ok := tracker.Acquire(key, 10*time.Second)
	require.True(t, ok)

	clock.Advance(3 * time.Second)
	retryAfter, ok := tracker.Acquire(key, 10*time.Second)
	require.False(t, ok)
	assert.Equal(t, 7*time.Second, retryAfter)

	// A rejected attempt must not push the window forward.
	clock.Advance(4 * time.Second)
	retryAfter, ok = tracker.Acquire(key, 10*time.Second)
	require.False(t, ok)
	assert.Equal(t, 3*time.Second, retryAfter)
}

func TestAcquireAfterWindowResets(t *testing.T) {
	clock := newClock()
	tracker := NewTrackerWithClock(clock.Now)
	key := Key{Bucket: "user:alice", Command: "markov"}

	_, ok := tracker.Acquire(key, 10*time.Second)
	require.True(t, ok)

	clock.Advance(10 * time.Second)
	_, ok = tracker.Acquire(key, 10*time.Second)
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	retryAfter, ok := tracker.Acquire(key, 10*time.Second)
	require.False(t, ok)
	assert.Equal(t, 8*time.Second, retryAfter)
	assert.Equal(t, 8*time.Second, tracker.Remaining(key, 10*time.Second))
}

func TestAcquireKeysAreIndependent(t *testing.T) {
	tracker := NewTrackerWithClock(newClock().Now)

	_, ok := tracker.Acquire(Key{Bucket: "user:alice", Command: "markov"}, time.Minute)
	require.True(t, ok)
	_, ok = tracker.Acquire(Key{Bucket: "user:bob", Command: "markov"}, time.Minute)
	assert.True(t, ok)
	_, ok = tracker.Acquire(Key{Bucket: "user:alice", Command: "ping"}, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 3, tracker.Len())
}

func TestAcquireDisabledWindowNeverRecords(t *testing.T) {
	tracker := NewTracker()
	key := Key{Bucket: "user:alice", Command: "help"}

	for i := 0; i < 3; i++ {
		_, ok := tracker.Acquire(key, 0)
		assert.True(t, ok)
	}
	assert.Zero(t, tracker.Len())
	assert.Zero(t, tracker.Remaining(key, 0))
}

func TestAcquireIsAtomicPerKey(t *testing.T) {
	tracker := NewTrackerWithClock(newClock().Now)
	key := Key{Bucket: "channel:room", Command: "markov"}

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := tracker.Acquire(key, time.Minute); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, granted.Load())
}

func TestPolicyKeyFor(t *testing.T) {
	user := Policy{Window: time.Second, Scope: ScopeUser}
	channel := Policy{Window: time.Second, Scope: ScopeChannel}

	assert.Equal(t, Key{Bucket: "user:u1", Command: "markov"}, user.KeyFor("markov", "u1", "r1"))
	assert.Equal(t, Key{Bucket: "channel:r1", Command: "markov"}, channel.KeyFor("markov", "u1", "r1"))
	assert.True(t, user.Enabled())
	assert.False(t, Policy{}.Enabled())
}

func TestParseScope(t *testing.T) {
	scope, err := ParseScope(" Channel ")
	require.NoError(t, err)
	assert.Equal(t, ScopeChannel, scope)

	scope, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, scope)

	_, err = ParseScope("guild")
	assert.Error(t, err)
}
