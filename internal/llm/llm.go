// Package llm judges how well a pull request diff matches its ticket.
package llm

import (
	"context"
	"errors"

	"github.com/drewdunne/prwatch/internal/fault"
)

// Strategy names a model backend.
type Strategy string

const (
	StrategyOpenAI    Strategy = "openai"
	StrategyAnthropic Strategy = "anthropic"
)

// Ticket is the issue content sent to the model.
type Ticket struct {
	ID          string
	Summary     string
	Description string
}

// Verdict is the model's structured judgement.
type Verdict struct {
	ConfidenceScore float64  `json:"confidence_score"`
	Summary         string   `json:"summary"`
	Findings        []string `json:"findings"`
	Concerns        []string `json:"concerns"`
}

// Analyzer scores a diff against a ticket. Implementations make exactly one
// model request per call.
type Analyzer interface {
	Analyze(ctx context.Context, ticket Ticket, diff string) (*Verdict, error)
}

// StatusError classifies a non-2xx model response. Anything other than an
// authentication failure is treated as the service being unavailable.
func StatusError(service string, status int, err error) error {
	fe := fault.FromStatus(service, status, "")
	if errors.Is(fe.Kind, fault.ErrUpstreamNotFound) {
		fe.Kind = fault.ErrUpstreamUnavailable
	}
	fe.Err = err
	return fe
}
