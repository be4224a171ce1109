// Package webhook receives pull request events from code hosts and turns
// them into sync triggers.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/drewdunne/prwatch/internal/provider"
)

// Event is a verified pull request or merge request event.
type Event struct {
	Provider   string
	Owner      string
	Name       string
	Number     int
	Action     string
	Actor      string
	Delivery   string
	ReceivedAt time.Time
}

// Repository returns the repository the event belongs to.
func (e *Event) Repository() provider.Repository {
	return provider.Repository{Provider: e.Provider, Owner: e.Owner, Name: e.Name}
}

// Key identifies equivalent events for debouncing.
func (e *Event) Key() string {
	return e.Repository().Key() + "/" + e.Action + "/" + fmt.Sprint(e.Number)
}

// Dispatcher is called for every verified pull request event.
type Dispatcher func(ctx context.Context, ev *Event) error
