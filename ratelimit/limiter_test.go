package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxRequests: 3,
		Window:      60 * time.Second,
		BlockFor:    time.Hour,
	}
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero max requests", Config{MaxRequests: 0, Window: time.Minute, BlockFor: time.Hour}},
		{"negative max requests", Config{MaxRequests: -1, Window: time.Minute, BlockFor: time.Hour}},
		{"zero window", Config{MaxRequests: 3, Window: 0, BlockFor: time.Hour}},
		{"zero block duration", Config{MaxRequests: 3, Window: time.Minute, BlockFor: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.cfg)
			assert.Error(t, err)
			assert.Nil(t, l)
		})
	}

	l, err := New(testConfig())
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestFirstCallHasFullBudget(t *testing.T) {
	l, err := New(testConfig())
	require.NoError(t, err)

	d := l.Check("203.0.113.7", time.Unix(0, 0))
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, 60*time.Second, d.ResetIn)
}

func TestBlockAndLazyUnblock(t *testing.T) {
	l, err := New(testConfig())
	require.NoError(t, err)

	base := time.Unix(1_000_000, 0)
	at := func(s int) time.Time { return base.Add(time.Duration(s) * time.Second) }

	// Three admissions exhaust the window.
	for i, sec := range []int{0, 10, 20} {
		d := l.Check("A", at(sec))
		require.True(t, d.Allowed, "call at t=%d", sec)
		assert.Equal(t, 2-i, d.Remaining)
	}

	// The fourth call trips the block for the full block duration.
	d := l.Check("A", at(25))
	require.False(t, d.Allowed)
	assert.Equal(t, time.Hour, d.RetryAfter)

	// While blocked, denials report the shrinking wait without
	// re-arming the ban.
	d = l.Check("A", at(100))
	require.False(t, d.Allowed)
	assert.Equal(t, 3525*time.Second, d.RetryAfter)

	d = l.Check("A", at(25+3599))
	require.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	// At the unblock time the identity starts over with an empty window.
	d = l.Check("A", at(25+3600))
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestWindowSlides(t *testing.T) {
	l, err := New(Config{MaxRequests: 2, Window: 60 * time.Second, BlockFor: time.Hour})
	require.NoError(t, err)

	base := time.Unix(0, 0)
	require.True(t, l.Check("A", base).Allowed)
	require.True(t, l.Check("A", base.Add(50*time.Second)).Allowed)

	// At t=61 the first timestamp has aged out, freeing one slot.
	d := l.Check("A", base.Add(61*time.Second))
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestAllowedNeverExceedsLimitPerWindow(t *testing.T) {
	cfg := Config{MaxRequests: 5, Window: 30 * time.Second, BlockFor: time.Minute}
	l, err := New(cfg)
	require.NoError(t, err)

	// Admissions at any timestamp sequence: count the Allowed results
	// inside each trailing window.
	base := time.Unix(500, 0)
	var admitted []time.Time
	for s := 0; s < 200; s += 3 {
		now := base.Add(time.Duration(s) * time.Second)
		if l.Check("A", now).Allowed {
			admitted = append(admitted, now)
		}
	}

	for _, end := range admitted {
		start := end.Add(-cfg.Window)
		count := 0
		for _, ts := range admitted {
			if !ts.Before(start) && !ts.After(end) {
				count++
			}
		}
		assert.LessOrEqual(t, count, cfg.MaxRequests,
			"window ending at %s admitted too many calls", end)
	}
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l, err := New(Config{MaxRequests: 1, Window: time.Minute, BlockFor: time.Hour})
	require.NoError(t, err)

	now := time.Unix(0, 0)
	require.True(t, l.Check("A", now).Allowed)
	require.False(t, l.Check("A", now.Add(time.Second)).Allowed)

	// B is unaffected by A's block.
	assert.True(t, l.Check("B", now.Add(2*time.Second)).Allowed)
}

func TestPurge(t *testing.T) {
	l, err := New(Config{MaxRequests: 2, Window: time.Minute, BlockFor: time.Hour})
	require.NoError(t, err)

	base := time.Unix(0, 0)
	l.Check("stale", base)
	l.Check("fresh", base.Add(90*time.Second))

	// Trip a block for a third identity.
	l.Check("banned", base)
	l.Check("banned", base)
	require.False(t, l.Check("banned", base).Allowed)
	require.Equal(t, 3, l.Len())

	// stale's window has emptied; banned's block is still active.
	l.Purge(base.Add(2 * time.Minute))
	assert.Equal(t, 2, l.Len())
	require.False(t, l.Check("banned", base.Add(2*time.Minute)).Allowed)

	// Once the ban expires, purge drops the identity entirely and a
	// later check starts fresh. fresh's window has emptied too by now.
	l.Purge(base.Add(2 * time.Hour))
	assert.Equal(t, 0, l.Len())
	assert.True(t, l.Check("banned", base.Add(2*time.Hour)).Allowed)
}

func TestConcurrentChecksSameIdentity(t *testing.T) {
	l, err := New(Config{MaxRequests: 10, Window: time.Minute, BlockFor: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	now := time.Unix(0, 0)
	concurrency := 100

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("A", now).Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	// Exactly the window budget may be admitted; two racing calls must
	// never both take the last slot.
	if allowed != 10 {
		t.Errorf("Expected exactly 10 admissions, got %d", allowed)
	}
}
