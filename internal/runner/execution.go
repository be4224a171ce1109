package runner

import "time"

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Execution records one validation run.
type Execution struct {
	ID           string     `json:"id"`
	Repository   string     `json:"repository"`
	PRNumber     int        `json:"pr_number"`
	PRTitle      string     `json:"pr_title,omitempty"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Logs         []string   `json:"logs"`
	Success      bool       `json:"success"`
	ValidationID string     `json:"validation_id,omitempty"`
	Stage        string     `json:"stage,omitempty"`
	Error        string     `json:"error,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
}

func (e *Execution) clone() Execution {
	c := *e
	c.Logs = append([]string(nil), e.Logs...)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
