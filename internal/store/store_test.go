package store

import (
	"errors"
	"testing"

	"github.com/drewdunne/prwatch/internal/fault"
)

func TestFilter_Matches(t *testing.T) {
	rec := &ValidationRecord{RepositoryID: "github/acme/api", PRNumber: 3, TicketID: "PROJ-1"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"repository", Filter{RepositoryID: "github/acme/api"}, true},
		{"other repository", Filter{RepositoryID: "github/acme/web"}, false},
		{"number", Filter{PRNumber: 3}, true},
		{"other number", Filter{PRNumber: 4}, false},
		{"ticket", Filter{TicketID: "PROJ-1"}, true},
		{"all fields", Filter{RepositoryID: "github/acme/api", PRNumber: 3, TicketID: "PROJ-1"}, true},
		{"one mismatch", Filter{RepositoryID: "github/acme/api", PRNumber: 3, TicketID: "PROJ-2"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(rec); got != tc.want {
				t.Errorf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	valid := ValidationRecord{RepositoryID: "github/acme/api", PRNumber: 3, TicketID: "PROJ-1", ConfidenceScore: 0.5}
	if err := Check(&valid); err != nil {
		t.Fatalf("Check(valid) error = %v", err)
	}

	bad := valid
	bad.ConfidenceScore = 2
	if err := Check(&bad); !errors.Is(err, fault.ErrPersistence) {
		t.Errorf("Check(score 2) error = %v, want ErrPersistence", err)
	}
}
