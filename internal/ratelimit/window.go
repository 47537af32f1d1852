// Package ratelimit implements the sliding-window admission gate that guards
// advisory requests.
//
// Each identity keeps the timestamps of its admitted requests inside the
// trailing window. Stamps older than the window are pruned on every check
// (lazy pruning), so no background goroutine is needed. Identities are
// locked independently; unrelated callers never contend on a shared mutex
// except for the brief map lookup.
//
// State is process-local. Multiple replicas each enforce their own limit.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// window is the per-identity state. stamps are kept oldest first.
type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// prune drops stamps at or before cutoff. Caller holds w.mu.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetTime is when the oldest counted request leaves the window. Zero
	// when the window is empty.
	ResetTime time.Time
}

// RetryAfter returns how long a denied caller should wait, rounded up to a
// whole second and never below one.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetTime.IsZero() {
		return time.Second
	}
	wait := d.ResetTime.Sub(now)
	secs := (wait + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}

// SlidingWindow is a per-identity sliding-window limiter. The zero value is
// not usable; construct with New. Safe for concurrent use.
type SlidingWindow struct {
	now     Clock
	windows sync.Map // identity -> *window

	idleTTL  time.Duration
	checks   atomic.Uint64
	gcEveryN uint64
}

// Option customizes a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces time.Now.
func WithClock(c Clock) Option {
	return func(s *SlidingWindow) {
		if c != nil {
			s.now = c
		}
	}
}

// WithIdleEviction drops identities not seen for ttl, checked every n calls.
func WithIdleEviction(ttl time.Duration, n uint64) Option {
	return func(s *SlidingWindow) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
		if n > 0 {
			s.gcEveryN = n
		}
	}
}

// New returns an empty limiter.
func New(opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		now:      time.Now,
		idleTTL:  30 * time.Minute,
		gcEveryN: 5000,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SlidingWindow) get(identity string, now time.Time) *window {
	if v, ok := s.windows.Load(identity); ok {
		return v.(*window)
	}
	v, _ := s.windows.LoadOrStore(identity, &window{lastSeen: now})
	return v.(*window)
}

// Allow admits the request when fewer than max requests were admitted for
// identity during the trailing window, recording it; otherwise it denies
// without recording. max <= 0 always denies.
func (s *SlidingWindow) Allow(identity string, max int, win time.Duration) bool {
	return s.Check(identity, max, win).Allowed
}

// Check is Allow with the full decision, for callers that report the limit
// and reset time on denial.
func (s *SlidingWindow) Check(identity string, max int, win time.Duration) Decision {
	now := s.now()
	s.maybeEvict(now)

	w := s.get(identity, now)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = now
	w.prune(now.Add(-win))

	d := Decision{Limit: max}
	if max > 0 && len(w.stamps) < max {
		w.stamps = append(w.stamps, now)
		d.Allowed = true
	}
	d.Remaining = max - len(w.stamps)
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if len(w.stamps) > 0 {
		d.ResetTime = w.stamps[0].Add(win)
	}
	return d
}

// ResetTime returns the instant at which the oldest request counted in the
// current window falls out of it. ok is false when nothing is counted.
func (s *SlidingWindow) ResetTime(identity string, win time.Duration) (t time.Time, ok bool) {
	v, found := s.windows.Load(identity)
	if !found {
		return time.Time{}, false
	}
	w := v.(*window)
	now := s.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now.Add(-win))
	if len(w.stamps) == 0 {
		return time.Time{}, false
	}
	return w.stamps[0].Add(win), true
}

// Len reports how many identities are tracked.
func (s *SlidingWindow) Len() int {
	n := 0
	s.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// maybeEvict runs an idle sweep every gcEveryN checks. It runs before the
// requested identity is touched so a stale entry can be dropped and
// recreated fresh.
func (s *SlidingWindow) maybeEvict(now time.Time) {
	if s.checks.Add(1)%s.gcEveryN != 0 {
		return
	}
	s.windows.Range(func(k, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		idle := now.Sub(w.lastSeen) >= s.idleTTL
		w.mu.Unlock()
		if idle {
			s.windows.CompareAndDelete(k, v)
		}
		return true
	})
}
