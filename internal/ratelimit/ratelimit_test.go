package ratelimit

import (
	"context"
	"errors"
	"sync"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(enabled bool) (*Limiter, *fakeClock, *MemoryStore) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	store := newMemoryStore(clock.Now)
	return New(store, nil, enabled), clock, store
}

func TestBudgetPerClass(t *testing.T) {
	for class, rule := range DefaultRules {
		t.Run(string(class), func(t *testing.T) {
			l, _, _ := newTestLimiter(true)
			ctx := context.Background()
			for i := 1; i <= rule.Limit; i++ {
				d, err := l.Allow(ctx, class, "user:1")
				require.NoError(t, err)
				require.True(t, d.Allowed, "request %d should pass", i)
				assert.Equal(t, rule.Limit-i, d.Remaining)
			}
			d, err := l.Allow(ctx, class, "user:1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 0, d.Remaining)
		})
	}
}

func TestBudgetResetsAfterWindow(t *testing.T) {
	l, clock, _ := newTestLimiter(true)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := l.Allow(ctx, ClassPrivate, "user:1")
		require.NoError(t, err)
	}
	d, _ := l.Allow(ctx, ClassPrivate, "user:1")
	require.False(t, d.Allowed)
	assert.Equal(t, clock.Now().Add(Window), d.ResetAt)

	clock.Advance(Window - time.Second)
	d, _ = l.Allow(ctx, ClassPrivate, "user:1")
	assert.False(t, d.Allowed)

	clock.Advance(time.Second)
	d, _ = l.Allow(ctx, ClassPrivate, "user:1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 14, d.Remaining)
}

func TestBudgetsAreDisjoint(t *testing.T) {
	l, _, _ := newTestLimiter(true)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, _ = l.Allow(ctx, ClassPrivate, "user:1")
	}
	d, _ := l.Allow(ctx, ClassPrivate, "user:1")
	require.False(t, d.Allowed)

	d, _ = l.Allow(ctx, ClassMedia, "user:1")
	assert.True(t, d.Allowed, "other classes keep their own budget")
	d, _ = l.Allow(ctx, ClassPrivate, "user:2")
	assert.True(t, d.Allowed, "other identities keep their own budget")
}

func TestDisabledLimiterNeverRejects(t *testing.T) {
	l, _, store := newTestLimiter(false)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		d, err := l.Allow(ctx, ClassPrivate, "user:1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	assert.Equal(t, 0, store.size())
}

func TestUnknownClass(t *testing.T) {
	l, _, _ := newTestLimiter(true)
	_, err := l.Allow(context.Background(), Class("video"), "user:1")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func TestStoreErrorsSurface(t *testing.T) {
	l := New(failingStore{}, nil, true)
	_, err := l.Allow(context.Background(), ClassMedia, "ip:10.0.0.1")
	assert.Error(t, err)
}

func TestMemoryStoreSweepsExpiredEntries(t *testing.T) {
	_, clock, store := newTestLimiter(true)
	ctx := context.Background()
	_, _, _ = store.Incr(ctx, "a", time.Minute)
	_, _, _ = store.Incr(ctx, "b", time.Hour)
	require.Equal(t, 2, store.size())

	clock.Advance(2 * time.Minute)
	_, _, _ = store.Incr(ctx, "c", time.Minute)
	assert.Equal(t, 2, store.size())
}
