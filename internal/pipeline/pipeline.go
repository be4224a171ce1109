// Package pipeline correlates a pull request with the ticket its description
// references and records the model's verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/diffstat"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/jira"
	"github.com/drewdunne/prwatch/internal/llm"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/drewdunne/prwatch/internal/store"
	"github.com/drewdunne/prwatch/internal/ticket"
)

// CodeHosts builds code host adapters for a token.
type CodeHosts interface {
	CodeHost(providerName, token string) (provider.Provider, error)
}

// Tracker fetches tickets.
type Tracker interface {
	FetchTicket(ctx context.Context, creds jira.Credentials, id string) (*jira.Ticket, error)
}

// AnalyzerFactory builds a model adapter from settings. llm.New satisfies it.
type AnalyzerFactory func(cfg config.LLMConfig) (llm.Analyzer, error)

// Recorder persists validation records.
type Recorder interface {
	Insert(ctx context.Context, rec *store.ValidationRecord) (string, error)
}

// Dependencies are the adapters a pipeline drives.
type Dependencies struct {
	CodeHosts CodeHosts
	Tracker   Tracker
	Analyzers AnalyzerFactory
	Store     Recorder
}

// Request identifies the pull request to validate and carries every
// credential the run needs.
type Request struct {
	Repository  provider.Repository
	Number      int
	Credentials config.Credentials

	// OnStage, if set, observes each stage as it begins. It cannot change
	// the outcome of the run.
	OnStage func(stage Stage, detail string)
}

// Result is the outcome of a successful run.
type Result struct {
	Record      store.ValidationRecord
	PullRequest provider.PullRequest
	Ticket      jira.Ticket
}

// Pipeline runs correlation requests. It holds no per-run state and is safe
// for concurrent use.
type Pipeline struct {
	deps Dependencies
}

// New creates a pipeline.
func New(deps Dependencies) *Pipeline {
	if deps.Analyzers == nil {
		deps.Analyzers = llm.New
	}
	return &Pipeline{deps: deps}
}

// Run executes Start, FetchPR, ExtractTicket, FetchDiff, FetchTicket,
// Analyze and Persist in order. The first failure ends the run and is
// returned as a *StageError; nothing is retried. A successful run performs
// exactly one store write.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	repo := req.Repository
	log := clog.FromContext(ctx).With("repo", repo.Key()).With("pr", req.Number)

	observe := func(stage Stage, detail string) {
		log.With("stage", stage).Debug(detail)
		if req.OnStage != nil {
			req.OnStage(stage, detail)
		}
	}
	fail := func(stage Stage, err error) (*Result, error) {
		log.With("stage", stage).With("error", err).Warn("Validation failed")
		return nil, &StageError{Stage: stage, Err: err}
	}
	enter := func(stage Stage, detail string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		observe(stage, detail)
		return nil
	}

	// Start: every credential is checked before any network call.
	observe(StageStart, "checking credentials")
	host, analyzer, jiraCreds, err := p.prepare(req)
	if err != nil {
		return fail(StageStart, err)
	}

	if err := enter(StageFetchPR, fmt.Sprintf("fetching %s#%d", repo.FullName(), req.Number)); err != nil {
		return fail(StageFetchPR, err)
	}
	pr, err := host.GetPullRequest(ctx, repo.Owner, repo.Name, req.Number)
	if err != nil {
		return fail(StageFetchPR, err)
	}

	if err := enter(StageExtractTicket, "extracting ticket reference"); err != nil {
		return fail(StageExtractTicket, err)
	}
	ticketID, ok := ticket.ExtractID(pr.Description)
	if !ok {
		return fail(StageExtractTicket, fault.New(fault.ErrNoTicketReference, "pipeline",
			"description does not start with a ticket reference such as PROJ-123:"))
	}

	if err := enter(StageFetchDiff, "fetching diff"); err != nil {
		return fail(StageFetchDiff, err)
	}
	diff, err := host.GetDiff(ctx, repo.Owner, repo.Name, req.Number)
	if err != nil {
		return fail(StageFetchDiff, err)
	}

	if err := enter(StageFetchTicket, "fetching ticket "+ticketID); err != nil {
		return fail(StageFetchTicket, err)
	}
	tk, err := p.deps.Tracker.FetchTicket(ctx, jiraCreds, ticketID)
	if err != nil {
		return fail(StageFetchTicket, err)
	}

	if err := enter(StageAnalyze, "analyzing alignment"); err != nil {
		return fail(StageAnalyze, err)
	}
	verdict, err := analyzer.Analyze(ctx, llm.Ticket{ID: ticketID, Summary: tk.Summary, Description: tk.Description}, diff)
	if err != nil {
		return fail(StageAnalyze, err)
	}

	if err := enter(StagePersist, "recording validation"); err != nil {
		return fail(StagePersist, err)
	}
	rec := store.ValidationRecord{
		PRNumber:        req.Number,
		RepositoryID:    repo.Key(),
		TicketID:        ticketID,
		ConfidenceScore: verdict.ConfidenceScore,
		Findings: store.Findings{
			Summary:           verdict.Summary,
			Findings:          verdict.Findings,
			Concerns:          verdict.Concerns,
			TicketSummary:     tk.Summary,
			TicketDescription: tk.Description,
		},
		Diff:      diff,
		DiffStats: diffstat.Compute(diff),
	}
	if _, err := p.deps.Store.Insert(ctx, &rec); err != nil {
		if !errors.Is(err, fault.ErrPersistence) {
			err = store.Persistence(err)
		}
		return fail(StagePersist, err)
	}

	observe(StageDone, fmt.Sprintf("confidence %.2f", verdict.ConfidenceScore))
	log.With("ticket", ticketID).With("confidence", verdict.ConfidenceScore).Info("Validation completed")

	return &Result{Record: rec, PullRequest: *pr, Ticket: *tk}, nil
}

// prepare resolves every adapter and credential the run needs without
// touching the network.
func (p *Pipeline) prepare(req Request) (provider.Provider, llm.Analyzer, jira.Credentials, error) {
	creds := req.Credentials
	jiraCreds := jira.Credentials{Domain: creds.Jira.Domain, Email: creds.Jira.Email, Token: creds.Jira.Token}

	if req.Number <= 0 {
		return nil, nil, jiraCreds, fault.New(fault.ErrInvalidConfig, "pipeline", fmt.Sprintf("invalid pull request number %d", req.Number))
	}

	host, err := p.deps.CodeHosts.CodeHost(req.Repository.Provider, creds.CodeHostToken)
	if err != nil {
		return nil, nil, jiraCreds, err
	}

	switch {
	case jiraCreds.Domain == "":
		return nil, nil, jiraCreds, fault.New(fault.ErrMissingCredential, "jira", "domain is not configured")
	case jiraCreds.Email == "":
		return nil, nil, jiraCreds, fault.New(fault.ErrMissingCredential, "jira", "email is not configured")
	case jiraCreds.Token == "":
		return nil, nil, jiraCreds, fault.New(fault.ErrMissingCredential, "jira", "API token is not configured")
	}
	if err := jira.ValidateDomain(jiraCreds.Domain); err != nil {
		return nil, nil, jiraCreds, err
	}

	analyzer, err := p.deps.Analyzers(creds.LLM)
	if err != nil {
		return nil, nil, jiraCreds, err
	}

	return host, analyzer, jiraCreds, nil
}
