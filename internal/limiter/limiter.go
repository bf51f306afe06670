// Package limiter implements per-client sliding-window admission control
// for inbound chat messages.
package limiter

import (
	"sync"
	"time"
)

const (
	// DefaultMaxCalls is the number of admissions allowed inside one window.
	DefaultMaxCalls = 5
	// DefaultWindow is the trailing interval admissions are counted over.
	DefaultWindow = time.Second
)

// SlidingWindow tracks, per client identity, the instants of recently
// admitted messages. Unlike fixed-bucket limiters the window trails
// continuously, so the limit holds for every window placement.
type SlidingWindow struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	maxCalls int
	window   time.Duration
}

// NewSlidingWindow creates a limiter with the given policy. Non-positive
// arguments fall back to the defaults.
func NewSlidingWindow(maxCalls int, window time.Duration) *SlidingWindow {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		windows:  make(map[string][]time.Time),
		maxCalls: maxCalls,
		window:   window,
	}
}

// Admit reports whether a message from identity at time now may proceed.
// Timestamps older than the window are pruned first; a rejected call is
// not recorded and does not extend the window. The record for an unseen
// identity is created lazily on its first admission.
func (l *SlidingWindow) Admit(identity string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.window)
	kept := l.windows[identity][:0]
	for _, t := range l.windows[identity] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.maxCalls {
		l.windows[identity] = kept
		return false
	}
	l.windows[identity] = append(kept, now)
	return true
}

// Forget drops all state for an identity. Called once on disconnect so
// identities that never reconnect do not accumulate.
func (l *SlidingWindow) Forget(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, identity)
}

// Tracked returns the number of identities currently holding state.
func (l *SlidingWindow) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
