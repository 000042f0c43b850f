package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/Monsterkot/diplom/internal/store"
)

// NewTestStore opens a store in a fresh temporary directory and closes it on cleanup.
func NewTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()

	env := NewTestEnv(t)
	s, err := store.Open(env.Path("test.db"), opts...)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Clock is a settable time source for stores and schedulers under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
