// Package notify keeps the bounded log of user-facing notifications.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/drewdunne/prwatch/internal/metrics"
	"github.com/google/uuid"
)

const (
	DefaultCapacity = 500
	DefaultMaxAge   = 7 * 24 * time.Hour
)

// ErrNotFound is returned by MarkRead for unknown ids.
var ErrNotFound = errors.New("notification not found")

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one user-visible event.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	Severity    Severity  `json:"severity"`
	Repository  string    `json:"repository,omitempty"`
}

// Log holds at most capacity notifications no older than maxAge. The oldest
// entries are evicted first. It is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	items    []Notification // oldest first
	capacity int
	maxAge   time.Duration
	now      func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithCapacity bounds the number of retained notifications.
func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithMaxAge drops notifications older than d. Zero disables age eviction.
func WithMaxAge(d time.Duration) Option {
	return func(l *Log) {
		l.maxAge = d
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		capacity: DefaultCapacity,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add appends n as unread, assigning its ID and timestamp, and returns the
// stored copy.
func (l *Log) Add(n Notification) Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	n.ID = uuid.NewString()
	n.CreatedAt = l.now().UTC()
	n.Read = false
	if n.Severity == "" {
		n.Severity = SeverityInfo
	}

	l.expire()
	l.items = append(l.items, n)
	if over := len(l.items) - l.capacity; over > 0 {
		l.items = append([]Notification(nil), l.items[over:]...)
		metrics.NotificationsEvicted(over)
	}
	return n
}

// List returns all notifications, newest first.
func (l *Log) List() []Notification {
	return l.collect(func(Notification) bool { return true })
}

// Unread returns unread notifications, newest first.
func (l *Log) Unread() []Notification {
	return l.collect(func(n Notification) bool { return !n.Read })
}

// MarkRead marks one notification as read.
func (l *Log) MarkRead(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// MarkAllRead marks every notification as read and returns how many changed.
func (l *Log) MarkAllRead() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := 0
	for i := range l.items {
		if !l.items[i].Read {
			l.items[i].Read = true
			changed++
		}
	}
	return changed
}

// Len returns the number of retained notifications.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire()
	return len(l.items)
}

func (l *Log) collect(keep func(Notification) bool) []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire()

	result := []Notification{}
	for i := len(l.items) - 1; i >= 0; i-- {
		if keep(l.items[i]) {
			result = append(result, l.items[i])
		}
	}
	return result
}

// expire drops entries older than maxAge. Callers hold mu.
func (l *Log) expire() {
	if l.maxAge <= 0 || len(l.items) == 0 {
		return
	}
	cutoff := l.now().Add(-l.maxAge)
	i := 0
	for i < len(l.items) && l.items[i].CreatedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.items = append([]Notification(nil), l.items[i:]...)
		metrics.NotificationsEvicted(i)
	}
}
