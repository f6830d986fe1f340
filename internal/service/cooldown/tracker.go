package cooldown

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Scope selects which identity a cooldown window is tracked against.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeChannel Scope = "channel"
)

func (s Scope) String() string {
	return string(s)
}

// ParseScope accepts "user" or "channel" (case-insensitive).
func ParseScope(value string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(value))) {
	case ScopeUser, "":
		return ScopeUser, nil
	case ScopeChannel:
		return ScopeChannel, nil
	default:
		return "", fmt.Errorf("unknown cooldown scope: %q", value)
	}
}

// Policy is the rate limit attached to a command. A zero Window disables it.
type Policy struct {
	Window time.Duration
	Scope  Scope
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.Window > 0
}

// Key identifies one cooldown bucket.
type Key struct {
	Bucket  string
	Command string
}

// KeyFor builds the bucket key for an invocation under the policy's scope.
func (p Policy) KeyFor(command, userID, channelID string) Key {
	bucket := "user:" + userID
	if p.Scope == ScopeChannel {
		bucket = "channel:" + channelID
	}
	return Key{Bucket: bucket, Command: command}
}

// Tracker remembers the last permitted invocation per bucket. Expiry is
// computed when a key is checked; nothing runs in the background.
type Tracker struct {
	mu      sync.Mutex
	entries map[Key]time.Time
	now     func() time.Time
}

// NewTracker creates a tracker using the wall clock.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock creates a tracker with an injected clock.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		entries: make(map[Key]time.Time),
		now:     now,
	}
}

// Acquire checks key against window and, when the window has elapsed, records
// the invocation. When the key is still cooling down it returns the remaining
// time and false and leaves the entry untouched. Check and update happen under
// one lock so concurrent callers for a key cannot both succeed.
func (t *Tracker) Acquire(key Key, window time.Duration) (time.Duration, bool) {
	if window <= 0 {
		return 0, true
	}

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.entries[key]; ok {
		elapsed := now.Sub(last)
		if elapsed < window {
			if elapsed < 0 {
				elapsed = 0
			}
			return window - elapsed, false
		}
	}
	t.entries[key] = now
	return 0, true
}

// Remaining reports how long key stays on cooldown without recording anything.
func (t *Tracker) Remaining(key Key, window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}

	now := t.now()

	t.mu.Lock()
	last, ok := t.entries[key]
	t.mu.Unlock()

	if !ok {
		return 0
	}
	if remaining := window - now.Sub(last); remaining > 0 {
		return remaining
	}
	return 0
}

// Len returns the number of tracked buckets.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
