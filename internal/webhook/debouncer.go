package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
)

// Debouncer drops events whose key was seen within the window. Code hosts
// redeliver and often send several actions for one push.
type Debouncer struct {
	window time.Duration
	seen   map[string]time.Time
	mu     sync.Mutex
	now    func() time.Time
}

// NewDebouncer creates a new debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// ShouldProcess reports whether ev is outside the window of an earlier
// event with the same key, and records it.
func (d *Debouncer) ShouldProcess(ev *Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := ev.Key()
	now := d.now()

	if lastSeen, ok := d.seen[key]; ok && now.Sub(lastSeen) < d.window {
		return false
	}

	d.seen[key] = now
	d.cleanup(now)
	return true
}

func (d *Debouncer) cleanup(now time.Time) {
	threshold := now.Add(-d.window * 2)
	for key, t := range d.seen {
		if t.Before(threshold) {
			delete(d.seen, key)
		}
	}
}

// Debounce wraps next so that repeated events within window are dropped.
func Debounce(window time.Duration, next Dispatcher) Dispatcher {
	d := NewDebouncer(window)
	return func(ctx context.Context, ev *Event) error {
		if !d.ShouldProcess(ev) {
			clog.FromContext(ctx).With("event", ev.Key()).Debug("Event debounced")
			return nil
		}
		return next(ctx, ev)
	}
}
