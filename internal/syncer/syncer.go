// Package syncer polls watched repositories and turns newly observed pull
// requests into notifications.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/metrics"
	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/provider"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval      = 60 * time.Second
	defaultMaxConcurrent = 4
)

var (
	ErrAlreadyWatched = errors.New("repository already watched")
	ErrNotWatched     = errors.New("repository not watched")
	// ErrSuppressed is returned when a cycle for the repository is already
	// in flight.
	ErrSuppressed = errors.New("sync cycle already in flight")
)

// Source resolves the code host adapter for a repository.
type Source interface {
	CodeHost(repo provider.Repository) (provider.Provider, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(repo provider.Repository) (provider.Provider, error)

func (f SourceFunc) CodeHost(repo provider.Repository) (provider.Provider, error) {
	return f(repo)
}

// SyncState is the last successful observation of a repository. LastError
// holds the failure of the most recent cycle, if it failed.
type SyncState struct {
	PullRequests map[int]provider.PullRequest `json:"pull_requests"`
	SyncedAt     time.Time                    `json:"synced_at"`
	LastError    string                       `json:"last_error,omitempty"`
}

func (s *SyncState) clone() SyncState {
	c := SyncState{
		PullRequests: make(map[int]provider.PullRequest, len(s.PullRequests)),
		SyncedAt:     s.SyncedAt,
	}
	for k, v := range s.PullRequests {
		c.PullRequests[k] = v
	}
	return c
}

// Report summarizes one RunOnce pass.
type Report struct {
	Synced     int `json:"synced"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
}

type entry struct {
	repo      provider.Repository
	state     *SyncState
	lastError string
	inFlight  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithMaxConcurrent bounds how many repositories one pass syncs at once.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine owns the watched repository set and its SyncState. It is safe for
// concurrent use.
type Engine struct {
	source        Source
	notes         *notify.Log
	interval      time.Duration
	maxConcurrent int
	now           func() time.Time

	mu      sync.Mutex
	watched map[string]*entry

	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an engine. Nothing is polled until Add or Start.
func New(source Source, notes *notify.Log, opts ...Option) *Engine {
	e := &Engine{
		source:        source,
		notes:         notes,
		interval:      DefaultInterval,
		maxConcurrent: defaultMaxConcurrent,
		now:           time.Now,
		watched:       make(map[string]*entry),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add watches repo and runs its first cycle before returning. A failed
// first cycle is reported as a notification, not as an error.
func (e *Engine) Add(ctx context.Context, repo provider.Repository) error {
	if repo.Provider == "" {
		repo.Provider = provider.GitHub
	}
	if repo.Owner == "" || repo.Name == "" {
		return errors.New("repository owner and name are required")
	}
	key := repo.Key()

	e.mu.Lock()
	if _, ok := e.watched[key]; ok {
		e.mu.Unlock()
		return ErrAlreadyWatched
	}
	e.watched[key] = &entry{repo: repo}
	metrics.WatchedRepositories(len(e.watched))
	e.mu.Unlock()

	clog.FromContext(ctx).With("repo", key).Info("Watching repository")
	if err := e.cycle(ctx, key); err != nil && !errors.Is(err, ErrSuppressed) {
		clog.FromContext(ctx).With("repo", key).With("error", err).Warn("Initial sync failed")
	}
	return nil
}

// Remove stops watching repo and discards its state.
func (e *Engine) Remove(repo provider.Repository) error {
	if repo.Provider == "" {
		repo.Provider = provider.GitHub
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := repo.Key()
	if _, ok := e.watched[key]; !ok {
		return ErrNotWatched
	}
	delete(e.watched, key)
	metrics.WatchedRepositories(len(e.watched))
	return nil
}

// Watched returns the watched repositories sorted by key.
func (e *Engine) Watched() []provider.Repository {
	e.mu.Lock()
	defer e.mu.Unlock()

	repos := make([]provider.Repository, 0, len(e.watched))
	for _, ent := range e.watched {
		repos = append(repos, ent.repo)
	}
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].Key() < repos[j].Key()
	})
	return repos
}

// IsWatched reports whether repo is in the watched set.
func (e *Engine) IsWatched(repo provider.Repository) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.watched[repo.Key()]
	return ok
}

// State returns a copy of repo's SyncState. ok is false if the repository
// is not watched or has never synced successfully.
func (e *Engine) State(repo provider.Repository) (SyncState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.watched[repo.Key()]
	if !ok || (ent.state == nil && ent.lastError == "") {
		return SyncState{}, false
	}
	out := SyncState{PullRequests: map[int]provider.PullRequest{}}
	if ent.state != nil {
		out = ent.state.clone()
	}
	out.LastError = ent.lastError
	return out, true
}

// Trigger runs one cycle for repo.
func (e *Engine) Trigger(ctx context.Context, repo provider.Repository) error {
	return e.cycle(ctx, repo.Key())
}

// RunOnce runs one cycle for every watched repository and waits for all of
// them. One repository's failure does not affect the others.
func (e *Engine) RunOnce(ctx context.Context) Report {
	e.mu.Lock()
	keys := make([]string, 0, len(e.watched))
	for key := range e.watched {
		keys = append(keys, key)
	}
	e.mu.Unlock()
	sort.Strings(keys)

	var (
		mu     sync.Mutex
		report Report
	)
	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)
	for _, key := range keys {
		g.Go(func() error {
			err := e.cycle(ctx, key)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Synced++
			case errors.Is(err, ErrSuppressed):
				report.Suppressed++
			case errors.Is(err, ErrNotWatched):
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// Start launches the polling loop. Stop cancels it along with any cycles it
// has in flight.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(e.interval)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report := e.RunOnce(ctx)
				clog.FromContext(ctx).With("synced", report.Synced).
					With("failed", report.Failed).
					With("suppressed", report.Suppressed).
					Debug("Sync pass finished")
			case <-e.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the polling loop and waits for it to exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		close(e.stop)
	})
	e.wg.Wait()
}

func (e *Engine) cycle(ctx context.Context, key string) error {
	e.mu.Lock()
	ent, ok := e.watched[key]
	if !ok {
		e.mu.Unlock()
		return ErrNotWatched
	}
	if ent.inFlight {
		e.mu.Unlock()
		metrics.CycleSuppressed()
		return ErrSuppressed
	}
	ent.inFlight = true
	repo := ent.repo
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		ent.inFlight = false
		e.mu.Unlock()
	}()

	log := clog.FromContext(ctx).With("repo", key)

	var current []provider.PullRequest
	host, err := e.source.CodeHost(repo)
	if err == nil {
		current, err = host.ListPullRequests(ctx, repo.Owner, repo.Name)
	}
	if ctx.Err() != nil {
		// Abandoned; whatever came back is not applied.
		return ctx.Err()
	}

	e.mu.Lock()
	if e.watched[key] != ent {
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		ent.lastError = err.Error()
		e.mu.Unlock()

		log.With("error", err).Warn("Sync failed")
		metrics.SyncCycle(false)
		e.notes.Add(notify.Notification{
			Title:       "Sync failed",
			Description: fmt.Sprintf("%s: %v", repo.FullName(), err),
			Severity:    notify.SeverityError,
			Repository:  key,
		})
		return err
	}

	var previous map[int]provider.PullRequest
	if ent.state != nil {
		previous = ent.state.PullRequests
	}
	next := make(map[int]provider.PullRequest, len(current))
	var fresh []provider.PullRequest
	for _, pr := range current {
		if _, seen := previous[pr.Number]; !seen {
			if _, dup := next[pr.Number]; !dup {
				fresh = append(fresh, pr)
			}
		}
		next[pr.Number] = pr
	}
	ent.state = &SyncState{PullRequests: next, SyncedAt: e.now().UTC()}
	ent.lastError = ""
	e.mu.Unlock()

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Number < fresh[j].Number })
	for _, pr := range fresh {
		e.notes.Add(notify.Notification{
			Title:       "New pull request",
			Description: describe(repo, pr),
			Severity:    notify.SeverityInfo,
			Repository:  key,
		})
	}

	metrics.SyncCycle(true)
	metrics.NewPullRequests(len(fresh))
	if len(fresh) > 0 {
		log.With("new", len(fresh)).Info("Found new pull requests")
	}
	return nil
}

func describe(repo provider.Repository, pr provider.PullRequest) string {
	s := fmt.Sprintf("%s #%d: %s", repo.FullName(), pr.Number, pr.Title)
	if pr.Author != "" {
		s += " by " + pr.Author
	}
	return s
}
