// Package runner executes on-demand validations: it coalesces duplicate
// requests, bounds concurrency, tracks executions and reports outcomes as
// notifications.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/logging"
	"github.com/drewdunne/prwatch/internal/metrics"
	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxConcurrent = 4
	defaultHistory       = 200
)

// Validator runs one correlation. *pipeline.Pipeline satisfies it.
type Validator interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Config bounds the runner.
type Config struct {
	MaxConcurrent int
	History       int
}

// Option configures a Runner.
type Option func(*Runner)

// WithTranscripts writes a transcript file per execution.
func WithTranscripts(w *logging.Writer) Option {
	return func(r *Runner) {
		r.transcripts = w
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// Runner is safe for concurrent use.
type Runner struct {
	validator   Validator
	notes       *notify.Log
	transcripts *logging.Writer
	sem         *semaphore.Weighted
	group       singleflight.Group
	now         func() time.Time

	flightMu sync.Mutex
	flights  map[string]*flight

	mu         sync.Mutex
	executions []*Execution // oldest first
	history    int
}

// New creates a runner.
func New(v Validator, notes *notify.Log, cfg Config, opts ...Option) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.History <= 0 {
		cfg.History = defaultHistory
	}
	r := &Runner{
		validator: v,
		notes:     notes,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		history:   cfg.History,
		flights:   make(map[string]*flight),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate runs the pipeline for req. Concurrent calls for the same pull
// request share one run and its result. The shared run is cancelled only once
// every caller waiting on it has gone.
func (r *Runner) Validate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	key := fmt.Sprintf("%s#%d", req.Repository.Key(), req.Number)
	f := r.join(ctx, key)
	defer r.leave(key, f)

	leader := false
	ch := r.group.DoChan(key, func() (any, error) {
		leader = true
		return r.run(f.ctx, req)
	})

	select {
	case res := <-ch:
		if !leader {
			metrics.PipelineCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pipeline.Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flight is the context of a shared run and the number of callers waiting on it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (r *Runner) join(ctx context.Context, key string) *flight {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	f, ok := r.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f
}

func (r *Runner) leave(key string, f *flight) {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[key] == f {
		delete(r.flights, key)
		// A later caller starts a fresh run instead of joining the cancelled one.
		r.group.Forget(key)
	}
}

func (r *Runner) run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	exec := r.begin(req)
	log := clog.FromContext(ctx).With("execution", exec.ID).With("repo", exec.Repository).With("pr", req.Number)
	ctx = clog.WithLogger(ctx, log)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(ctx, exec, nil, &pipeline.StageError{Stage: pipeline.StageStart, Err: err})
		return nil, err
	}
	defer r.sem.Release(1)

	var transcript *logging.Transcript
	if r.transcripts != nil {
		t, err := r.transcripts.Open(logging.TranscriptEntry{
			ExecutionID: exec.ID,
			Owner:       req.Repository.Owner,
			Repo:        req.Repository.Name,
			PRNumber:    req.Number,
			Timestamp:   r.now(),
		})
		if err != nil {
			log.With("error", err).Warn("Transcript unavailable")
		} else {
			transcript = t
			r.update(exec, func(e *Execution) { e.Transcript = t.Path() })
		}
	}

	observer := req.OnStage
	req.OnStage = func(stage pipeline.Stage, detail string) {
		line := fmt.Sprintf("[%s] %s", stage, detail)
		r.update(exec, func(e *Execution) {
			e.Status = StatusRunning
			e.Stage = string(stage)
			e.Logs = append(e.Logs, line)
		})
		if transcript != nil {
			transcript.Printf("%s", line)
		}
		if observer != nil {
			observer(stage, detail)
		}
	}

	result, err := r.validator.Run(ctx, req)
	if transcript != nil {
		if err != nil {
			transcript.Printf("failed: %v", err)
		} else {
			transcript.Printf("completed: validation %s", result.Record.ID)
		}
	}
	r.finish(ctx, exec, result, err)
	return result, err
}

func (r *Runner) begin(req pipeline.Request) *Execution {
	exec := &Execution{
		ID:         uuid.NewString(),
		Repository: req.Repository.Key(),
		PRNumber:   req.Number,
		Status:     StatusPending,
		StartedAt:  r.now().UTC(),
		Logs:       []string{},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, exec)
	if over := len(r.executions) - r.history; over > 0 {
		r.executions = append([]*Execution(nil), r.executions[over:]...)
	}
	return exec
}

func (r *Runner) update(exec *Execution, fn func(*Execution)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(exec)
}

func (r *Runner) finish(ctx context.Context, exec *Execution, result *pipeline.Result, err error) {
	stage := pipeline.StageDone
	if err != nil {
		stage = pipeline.StageOf(err)
	}

	r.update(exec, func(e *Execution) {
		done := r.now().UTC()
		e.CompletedAt = &done
		e.Stage = string(stage)
		if err != nil {
			e.Status = StatusFailed
			e.Error = err.Error()
			return
		}
		e.Status = StatusCompleted
		e.Success = true
		e.PRTitle = result.PullRequest.Title
		e.ValidationID = result.Record.ID
	})

	metrics.PipelineRun(err == nil, string(stage))
	log := clog.FromContext(ctx)

	switch {
	case err == nil:
		metrics.ValidationConfidence(result.Record.ConfidenceScore)
		r.notes.Add(notify.Notification{
			Title:       "Validation completed",
			Description: fmt.Sprintf("%s #%d matches %s with confidence %.0f%%", exec.Repository, exec.PRNumber, result.Record.TicketID, result.Record.ConfidenceScore*100),
			Severity:    notify.SeveritySuccess,
			Repository:  exec.Repository,
		})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// The caller went away; the outcome is not reported.
		log.With("stage", stage).Info("Validation abandoned")
	default:
		severity := notify.SeverityError
		if errors.Is(err, fault.ErrNoTicketReference) {
			severity = notify.SeverityWarning
		}
		r.notes.Add(notify.Notification{
			Title:       "Validation failed",
			Description: fmt.Sprintf("%s #%d: %v", exec.Repository, exec.PRNumber, err),
			Severity:    severity,
			Repository:  exec.Repository,
		})
	}
}

// Executions returns the tracked executions, newest first.
func (r *Runner) Executions() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Execution, 0, len(r.executions))
	for i := len(r.executions) - 1; i >= 0; i-- {
		result = append(result, r.executions[i].clone())
	}
	return result
}

// Execution returns one execution by id.
func (r *Runner) Execution(id string) (Execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.executions {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return Execution{}, false
}
