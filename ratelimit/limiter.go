package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Config holds the limiter settings. All three values must be positive.
type Config struct {
	MaxRequests int           // admitted calls per identity per window
	Window      time.Duration // sliding window width
	BlockFor    time.Duration // how long an identity stays blocked after exceeding the limit
}

// Decision is the outcome of a single Check call.
type Decision struct {
	Allowed    bool
	Remaining  int           // admissions left in the current window (allowed only)
	ResetIn    time.Duration // when the window resets (allowed only)
	RetryAfter time.Duration // how long to wait before retrying (denied only)
}

// callerWindow tracks the recent admissions for one identity.
// timestamps are kept in chronological order; blocked and unblockAt
// are set together and cleared together.
type callerWindow struct {
	timestamps []time.Time
	blocked    bool
	unblockAt  time.Time
}

// Limiter admits or rejects work per caller identity using a lazy
// sliding window. Identities that exceed the limit are blocked for
// a configurable duration and unblocked lazily on their next check.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*callerWindow
}

// New creates a Limiter. Non-positive configuration is a construction-time
// error; Check itself never fails.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("ratelimit: max requests must be positive, got %d", cfg.MaxRequests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", cfg.Window)
	}
	if cfg.BlockFor <= 0 {
		return nil, fmt.Errorf("ratelimit: block duration must be positive, got %s", cfg.BlockFor)
	}
	return &Limiter{
		cfg:     cfg,
		windows: make(map[string]*callerWindow),
	}, nil
}

// Check decides whether to admit one unit of work for identity at the
// given time, recording the admission as a side effect. Blocked
// identities are denied without touching their window; a block whose
// expiry has passed is removed before deciding.
func (l *Limiter) Check(identity string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok {
		w = &callerWindow{}
		l.windows[identity] = w
	}

	if w.blocked {
		if now.Before(w.unblockAt) {
			return Decision{RetryAfter: w.unblockAt.Sub(now)}
		}
		// Ban expired; start the identity over with an empty window.
		w.blocked = false
		w.unblockAt = time.Time{}
		w.timestamps = w.timestamps[:0]
	}

	w.prune(now.Add(-l.cfg.Window))

	if len(w.timestamps) >= l.cfg.MaxRequests {
		w.blocked = true
		w.unblockAt = now.Add(l.cfg.BlockFor)
		return Decision{RetryAfter: l.cfg.BlockFor}
	}

	w.timestamps = append(w.timestamps, now)
	return Decision{
		Allowed:   true,
		Remaining: l.cfg.MaxRequests - len(w.timestamps),
		ResetIn:   l.cfg.Window,
	}
}

// prune drops timestamps older than cutoff. Timestamps are appended in
// order, so only a prefix can be stale.
func (w *callerWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// Purge removes state for identities whose window is empty and whose
// block (if any) has expired. It never removes an active block, so it
// always agrees with the lazy check in Check.
func (l *Limiter) Purge(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window)
	for id, w := range l.windows {
		if w.blocked {
			if now.Before(w.unblockAt) {
				continue
			}
			w.blocked = false
			w.unblockAt = time.Time{}
			w.timestamps = w.timestamps[:0]
		}
		w.prune(cutoff)
		if len(w.timestamps) == 0 {
			delete(l.windows, id)
		}
	}
}

// Len reports how many identities currently have state.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
