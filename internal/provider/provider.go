package provider

import "context"

// Provider defines the code-host operations the monitor depends on.
// Implementations are bound to a single credential at construction and
// classify every failure with the fault package.
type Provider interface {
	// Name returns the provider name (github, gitlab).
	Name() string

	// ListPullRequests returns every pull request of the repository,
	// regardless of state.
	ListPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error)

	// GetPullRequest fetches a pull request by number.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)

	// GetDiff returns the unified diff of a pull request.
	GetDiff(ctx context.Context, owner, repo string, number int) (string, error)
}
