package github

import (
	"context"
	"errors"
	"net/http"

	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/google/go-github/v60/github"
)

const perPage = 100

// Ensure GitHubProvider implements provider.Provider.
var _ provider.Provider = (*GitHubProvider)(nil)

// GitHubProvider implements provider.Provider for GitHub.
type GitHubProvider struct {
	client *github.Client
}

// Option configures the GitHub provider.
type Option func(*GitHubProvider)

// WithBaseURL sets a custom base URL (GitHub Enterprise, tests).
func WithBaseURL(url string) Option {
	return func(p *GitHubProvider) {
		p.client.BaseURL, _ = p.client.BaseURL.Parse(url + "/")
	}
}

// New creates a new GitHub provider bound to token.
func New(token string, opts ...Option) *GitHubProvider {
	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}
	p := &GitHubProvider{
		client: github.NewClient(httpClient),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// tokenTransport adds the bearer authorization header to requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// Name returns the provider name.
func (p *GitHubProvider) Name() string {
	return provider.GitHub
}

// ListPullRequests returns all pull requests (state=all), following pagination.
func (p *GitHubProvider) ListPullRequests(ctx context.Context, owner, repo string) ([]provider.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var result []provider.PullRequest
	for {
		prs, resp, err := p.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, classify(err)
		}
		for _, pr := range prs {
			result = append(result, convert(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// GetPullRequest fetches a pull request by number.
func (p *GitHubProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	pr, _, err := p.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, classify(err)
	}
	result := convert(pr)
	return &result, nil
}

// GetDiff returns the pull request diff in unified format.
func (p *GitHubProvider) GetDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := p.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", classify(err)
	}
	return diff, nil
}

func convert(pr *github.PullRequest) provider.PullRequest {
	state := pr.GetState()
	if pr.MergedAt != nil {
		state = "merged"
	}
	return provider.PullRequest{
		Number:      pr.GetNumber(),
		Title:       pr.GetTitle(),
		State:       state,
		Author:      pr.GetUser().GetLogin(),
		Description: pr.GetBody(),
		URL:         pr.GetHTMLURL(),
		CreatedAt:   pr.GetCreatedAt().Time,
		UpdatedAt:   pr.GetUpdatedAt().Time,
	}
}

// classify maps go-github errors onto the fault taxonomy. Rate limiting is
// reported as unavailability even though GitHub answers it with 403.
func classify(err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &fault.Error{Kind: fault.ErrUpstreamUnavailable, Service: provider.GitHub, Status: statusOf(rle.Response), Message: rle.Message}
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return &fault.Error{Kind: fault.ErrUpstreamUnavailable, Service: provider.GitHub, Status: statusOf(abuse.Response), Message: abuse.Message}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return fault.FromStatus(provider.GitHub, er.Response.StatusCode, er.Message)
	}
	return fault.Unavailable(provider.GitHub, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
