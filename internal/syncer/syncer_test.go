package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	mu      sync.Mutex
	pulls   []provider.PullRequest
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (h *fakeHost) Name() string { return provider.GitHub }

func (h *fakeHost) set(pulls []provider.PullRequest, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pulls, h.err = pulls, err
}

func (h *fakeHost) ListPullRequests(ctx context.Context, owner, repo string) ([]provider.PullRequest, error) {
	h.mu.Lock()
	h.calls++
	pulls, err := h.pulls, h.err
	started, release := h.started, h.release
	h.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return pulls, err
}

func (h *fakeHost) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	return nil, errors.New("not implemented")
}

func (h *fakeHost) GetDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	return "", errors.New("not implemented")
}

func sourceFor(host *fakeHost) Source {
	return SourceFunc(func(provider.Repository) (provider.Provider, error) {
		return host, nil
	})
}

var repo = provider.Repository{Provider: provider.GitHub, Owner: "acme", Name: "api"}

func pulls(numbers ...int) []provider.PullRequest {
	var out []provider.PullRequest
	for _, n := range numbers {
		out = append(out, provider.PullRequest{Number: n, Title: "change", State: "open", Author: "dev"})
	}
	return out
}

func TestEngine_FirstCycleNotifiesEveryPullRequest(t *testing.T) {
	host := &fakeHost{pulls: pulls(1, 2)}
	notes := notify.New()
	e := New(sourceFor(host), notes)

	require.NoError(t, e.Add(context.Background(), repo))

	list := notes.List()
	require.Len(t, list, 2)
	for _, n := range list {
		require.Equal(t, notify.SeverityInfo, n.Severity)
		require.Equal(t, "New pull request", n.Title)
		require.Equal(t, "github/acme/api", n.Repository)
	}

	state, ok := e.State(repo)
	require.True(t, ok)
	require.Len(t, state.PullRequests, 2)
}

func TestEngine_UnchangedListIsIdempotent(t *testing.T) {
	host := &fakeHost{pulls: pulls(1, 2)}
	notes := notify.New()
	e := New(sourceFor(host), notes)
	require.NoError(t, e.Add(context.Background(), repo))

	report := e.RunOnce(context.Background())
	require.Equal(t, Report{Synced: 1}, report)
	require.Equal(t, 2, notes.Len())
}

func TestEngine_OnlyNewNumbersNotify(t *testing.T) {
	host := &fakeHost{pulls: pulls(1)}
	notes := notify.New()
	e := New(sourceFor(host), notes)
	require.NoError(t, e.Add(context.Background(), repo))

	changed := pulls(1, 3)
	changed[0].Title = "retitled"
	host.set(changed, nil)
	require.NoError(t, e.Trigger(context.Background(), repo))

	list := notes.List()
	require.Len(t, list, 2)
	require.Contains(t, list[0].Description, "#3")

	state, _ := e.State(repo)
	require.Equal(t, "retitled", state.PullRequests[1].Title)
}

func TestEngine_PullRequestMissingFromListing(t *testing.T) {
	host := &fakeHost{pulls: pulls(1, 2)}
	notes := notify.New()
	e := New(sourceFor(host), notes)
	require.NoError(t, e.Add(context.Background(), repo))

	host.set(pulls(2), nil)
	require.NoError(t, e.Trigger(context.Background(), repo))
	host.set(pulls(1, 2), nil)
	require.NoError(t, e.Trigger(context.Background(), repo))

	// A PR missing from one listing (deleted or transferred) counts as new
	// when it shows up again.
	require.Equal(t, 3, notes.Len())
}

func TestEngine_FailurePreservesState(t *testing.T) {
	host := &fakeHost{pulls: pulls(1, 2)}
	notes := notify.New()
	e := New(sourceFor(host), notes)
	require.NoError(t, e.Add(context.Background(), repo))

	upstream := fault.FromStatus("github", 503, "unavailable")
	host.set(nil, upstream)
	err := e.Trigger(context.Background(), repo)
	require.ErrorIs(t, err, upstream)

	list := notes.List()
	require.Len(t, list, 3)
	require.Equal(t, notify.SeverityError, list[0].Severity)
	require.Equal(t, "Sync failed", list[0].Title)

	state, ok := e.State(repo)
	require.True(t, ok)
	require.Len(t, state.PullRequests, 2)
	require.NotEmpty(t, state.LastError)

	// Recovery against the preserved baseline emits nothing new.
	host.set(pulls(1, 2), nil)
	require.NoError(t, e.Trigger(context.Background(), repo))
	require.Equal(t, 3, notes.Len())

	state, _ = e.State(repo)
	require.Empty(t, state.LastError)
}

func TestEngine_FailureInOneRepositoryDoesNotStopOthers(t *testing.T) {
	good := &fakeHost{pulls: pulls(1)}
	bad := &fakeHost{err: errors.New("boom")}
	other := provider.Repository{Provider: provider.GitLab, Owner: "acme", Name: "web"}

	notes := notify.New()
	e := New(SourceFunc(func(r provider.Repository) (provider.Provider, error) {
		if r.Provider == provider.GitLab {
			return bad, nil
		}
		return good, nil
	}), notes)

	require.NoError(t, e.Add(context.Background(), repo))
	require.NoError(t, e.Add(context.Background(), other))

	good.set(pulls(1, 2), nil)
	report := e.RunOnce(context.Background())
	require.Equal(t, Report{Synced: 1, Failed: 1}, report)

	state, ok := e.State(repo)
	require.True(t, ok)
	require.Len(t, state.PullRequests, 2)
}

func TestEngine_SourceErrorIsReported(t *testing.T) {
	notes := notify.New()
	e := New(SourceFunc(func(provider.Repository) (provider.Provider, error) {
		return nil, fault.New(fault.ErrMissingCredential, "github", "no token")
	}), notes)

	require.NoError(t, e.Add(context.Background(), repo))
	require.Equal(t, 1, notes.Len())
	require.Equal(t, notify.SeverityError, notes.List()[0].Severity)

	state, ok := e.State(repo)
	require.True(t, ok)
	require.Contains(t, state.LastError, "no token")
	require.Empty(t, state.PullRequests)
	require.True(t, state.SyncedAt.IsZero())
}

func TestEngine_FirstSuccessAfterFailedStart(t *testing.T) {
	host := &fakeHost{err: errors.New("boom")}
	notes := notify.New()
	e := New(sourceFor(host), notes)
	require.NoError(t, e.Add(context.Background(), repo))

	state, ok := e.State(repo)
	require.True(t, ok)
	require.Equal(t, "boom", state.LastError)

	host.set(pulls(1, 2), nil)
	require.NoError(t, e.Trigger(context.Background(), repo))

	state, ok = e.State(repo)
	require.True(t, ok)
	require.Empty(t, state.LastError)
	require.Len(t, state.PullRequests, 2)
	require.Equal(t, 3, notes.Len())
}

func TestEngine_AddTwice(t *testing.T) {
	e := New(sourceFor(&fakeHost{}), notify.New())
	require.NoError(t, e.Add(context.Background(), repo))
	require.ErrorIs(t, e.Add(context.Background(), repo), ErrAlreadyWatched)
}

func TestEngine_AddRequiresOwnerAndName(t *testing.T) {
	e := New(sourceFor(&fakeHost{}), notify.New())
	require.Error(t, e.Add(context.Background(), provider.Repository{Owner: "acme"}))
	require.Empty(t, e.Watched())
}

func TestEngine_WatchedIsSorted(t *testing.T) {
	e := New(sourceFor(&fakeHost{}), notify.New())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, e.Add(context.Background(), provider.Repository{Owner: "acme", Name: name}))
	}

	var names []string
	for _, r := range e.Watched() {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestEngine_RemoveDiscardsState(t *testing.T) {
	e := New(sourceFor(&fakeHost{pulls: pulls(1)}), notify.New())
	require.NoError(t, e.Add(context.Background(), repo))

	require.NoError(t, e.Remove(repo))
	require.ErrorIs(t, e.Remove(repo), ErrNotWatched)
	require.False(t, e.IsWatched(repo))
	_, ok := e.State(repo)
	require.False(t, ok)
	require.ErrorIs(t, e.Trigger(context.Background(), repo), ErrNotWatched)
}

func TestEngine_InFlightCycleSuppressesAnother(t *testing.T) {
	host := &fakeHost{pulls: pulls(1)}
	notes := notify.New()
	e := New(sourceFor(host), notes)
	require.NoError(t, e.Add(context.Background(), repo))

	host.mu.Lock()
	host.started = make(chan struct{}, 1)
	host.release = make(chan struct{})
	host.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- e.Trigger(context.Background(), repo) }()
	<-host.started

	require.ErrorIs(t, e.Trigger(context.Background(), repo), ErrSuppressed)
	require.Equal(t, Report{Suppressed: 1}, e.RunOnce(context.Background()))

	close(host.release)
	require.NoError(t, <-done)
	require.Equal(t, 2, host.calls)
}

func TestEngine_RemovedDuringCycleIsNotResurrected(t *testing.T) {
	host := &fakeHost{
		pulls:   pulls(1, 2),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	notes := notify.New()
	e := New(sourceFor(host), notes)

	done := make(chan error, 1)
	go func() { done <- e.Add(context.Background(), repo) }()
	<-host.started

	require.NoError(t, e.Remove(repo))
	close(host.release)
	require.NoError(t, <-done)

	require.False(t, e.IsWatched(repo))
	_, ok := e.State(repo)
	require.False(t, ok)
	require.Zero(t, notes.Len())
}

func TestEngine_CancelledCycleIsDropped(t *testing.T) {
	host := &fakeHost{
		pulls:   pulls(1),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	notes := notify.New()
	e := New(sourceFor(host), notes)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Add(ctx, repo) }()
	<-host.started
	cancel()
	require.NoError(t, <-done)

	require.True(t, e.IsWatched(repo))
	_, ok := e.State(repo)
	require.False(t, ok)
	require.Zero(t, notes.Len())
}

func TestEngine_StartPollsOnInterval(t *testing.T) {
	host := &fakeHost{pulls: pulls(1)}
	notes := notify.New()
	e := New(sourceFor(host), notes, WithInterval(10*time.Millisecond))
	require.NoError(t, e.Add(context.Background(), repo))

	host.set(pulls(1, 2), nil)
	e.Start(context.Background())
	defer e.Stop()

	require.Eventually(t, func() bool {
		return notes.Len() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e := New(sourceFor(&fakeHost{}), notify.New(), WithInterval(time.Hour))
	e.Start(context.Background())
	e.Stop()
	e.Stop()
}
