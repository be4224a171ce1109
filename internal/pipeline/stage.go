package pipeline

import (
	"errors"
	"fmt"
)

// Stage is a step of a correlation run.
type Stage string

const (
	StageStart         Stage = "start"
	StageFetchPR       Stage = "fetch_pr"
	StageExtractTicket Stage = "extract_ticket"
	StageFetchDiff     Stage = "fetch_diff"
	StageFetchTicket   Stage = "fetch_ticket"
	StageAnalyze       Stage = "analyze"
	StagePersist       Stage = "persist"
	StageDone          Stage = "done"
)

// StageError is the first failure of a run, tagged with the stage it
// occurred in. Err is the failure as reported by the adapter.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage err failed in, or "" if err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
