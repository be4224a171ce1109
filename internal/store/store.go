// Package store persists correlation results.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drewdunne/prwatch/internal/diffstat"
	"github.com/drewdunne/prwatch/internal/fault"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("validation not found")

// Findings is the model's judgement together with the ticket text it judged.
type Findings struct {
	Summary           string   `json:"summary"`
	Findings          []string `json:"findings"`
	Concerns          []string `json:"concerns"`
	TicketSummary     string   `json:"jira_summary"`
	TicketDescription string   `json:"jira_description"`
}

// ValidationRecord is one persisted correlation result.
type ValidationRecord struct {
	ID              string         `json:"id"`
	PRNumber        int            `json:"pr_number"`
	RepositoryID    string         `json:"repository_id"`
	TicketID        string         `json:"jira_ticket_id"`
	ConfidenceScore float64        `json:"confidence_score"`
	Findings        Findings       `json:"findings"`
	Diff            string         `json:"pr_diff"`
	DiffStats       diffstat.Stats `json:"diff_stats"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	RepositoryID string
	PRNumber     int
	TicketID     string
	Limit        int
}

// Matches reports whether rec satisfies f.
func (f Filter) Matches(rec *ValidationRecord) bool {
	if f.RepositoryID != "" && rec.RepositoryID != f.RepositoryID {
		return false
	}
	if f.PRNumber != 0 && rec.PRNumber != f.PRNumber {
		return false
	}
	if f.TicketID != "" && rec.TicketID != f.TicketID {
		return false
	}
	return true
}

// Store is the validation record contract. Insert is atomic: on error
// nothing is stored.
type Store interface {
	// Insert stores rec and fills in its ID and CreatedAt.
	Insert(ctx context.Context, rec *ValidationRecord) (string, error)
	// List returns matching records, newest first.
	List(ctx context.Context, filter Filter) ([]ValidationRecord, error)
	Get(ctx context.Context, id string) (*ValidationRecord, error)
	Close() error
}

// Check rejects records that cannot be stored.
func Check(rec *ValidationRecord) error {
	switch {
	case rec == nil:
		return Persistence(errors.New("nil record"))
	case rec.TicketID == "":
		return Persistence(errors.New("record has no ticket id"))
	case rec.RepositoryID == "":
		return Persistence(errors.New("record has no repository id"))
	case rec.PRNumber <= 0:
		return Persistence(fmt.Errorf("invalid pull request number %d", rec.PRNumber))
	case rec.ConfidenceScore < 0 || rec.ConfidenceScore > 1:
		return Persistence(fmt.Errorf("confidence score %v outside [0,1]", rec.ConfidenceScore))
	}
	return nil
}

// Persistence classifies err as a storage failure.
func Persistence(err error) error {
	return fault.Wrap(fault.ErrPersistence, "store", err)
}
