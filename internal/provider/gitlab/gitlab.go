package gitlab

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/xanzy/go-gitlab"
)

const perPage = 100

var _ provider.Provider = (*GitLabProvider)(nil)

// GitLabProvider implements provider.Provider for GitLab.
type GitLabProvider struct {
	client *gitlab.Client
	token  string
}

// Option configures the GitLab provider.
type Option func(*GitLabProvider)

// WithBaseURL sets a custom base URL (self-hosted, tests).
func WithBaseURL(baseURL string) Option {
	return func(p *GitLabProvider) {
		p.client, _ = gitlab.NewClient(p.token,
			gitlab.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/api/v4"),
			gitlab.WithoutRetries(),
		)
	}
}

// New creates a new GitLab provider bound to token.
func New(token string, opts ...Option) *GitLabProvider {
	client, _ := gitlab.NewClient(token, gitlab.WithoutRetries())
	p := &GitLabProvider{client: client, token: token}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the provider name.
func (p *GitLabProvider) Name() string {
	return provider.GitLab
}

// projectPath is the project's full path. go-gitlab escapes it when building
// request URLs.
func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

// ListPullRequests returns every merge request of the project, following pagination.
func (p *GitLabProvider) ListPullRequests(ctx context.Context, owner, repo string) ([]provider.PullRequest, error) {
	opts := &gitlab.ListProjectMergeRequestsOptions{
		State:       gitlab.Ptr("all"),
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var result []provider.PullRequest
	for {
		mrs, resp, err := p.client.MergeRequests.ListProjectMergeRequests(projectPath(owner, repo), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(err)
		}
		for _, mr := range mrs {
			result = append(result, convert(mr))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// GetPullRequest fetches a merge request by IID.
func (p *GitLabProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequest(projectPath(owner, repo), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	result := convert(mr)
	return &result, nil
}

// GetDiff assembles the merge request changes into a unified diff.
func (p *GitLabProvider) GetDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequestChanges(projectPath(owner, repo), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", classify(err)
	}

	var b strings.Builder
	for _, c := range mr.Changes {
		oldPath, newPath := "a/"+c.OldPath, "b/"+c.NewPath
		b.WriteString("diff --git " + oldPath + " " + newPath + "\n")
		if c.NewFile {
			oldPath = "/dev/null"
		}
		if c.DeletedFile {
			newPath = "/dev/null"
		}
		b.WriteString("--- " + oldPath + "\n")
		b.WriteString("+++ " + newPath + "\n")
		b.WriteString(c.Diff)
		if c.Diff != "" && !strings.HasSuffix(c.Diff, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func convert(mr *gitlab.MergeRequest) provider.PullRequest {
	state := mr.State
	if state == "opened" {
		state = "open"
	}
	result := provider.PullRequest{
		Number:      mr.IID,
		Title:       mr.Title,
		State:       state,
		Description: mr.Description,
		URL:         mr.WebURL,
	}
	if mr.Author != nil {
		result.Author = mr.Author.Username
	}
	if mr.CreatedAt != nil {
		result.CreatedAt = *mr.CreatedAt
	}
	if mr.UpdatedAt != nil {
		result.UpdatedAt = *mr.UpdatedAt
	}
	return result
}

func classify(err error) error {
	if errors.Is(err, gitlab.ErrNotFound) {
		return fault.FromStatus(provider.GitLab, http.StatusNotFound, err.Error())
	}
	var er *gitlab.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return fault.FromStatus(provider.GitLab, er.Response.StatusCode, er.Message)
	}
	return fault.Unavailable(provider.GitLab, err)
}
