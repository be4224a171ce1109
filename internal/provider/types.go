package provider

import (
	"fmt"
	"strings"
	"time"
)

// Provider names.
const (
	GitHub = "github"
	GitLab = "gitlab"
)

// PullRequest is a snapshot of a pull/merge request as observed on one poll.
type PullRequest struct {
	Number      int // PR number (GitHub) or MR IID (GitLab)
	Title       string
	State       string // open, closed, merged
	Author      string
	Description string
	URL         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository identifies a watched repository.
type Repository struct {
	Provider  string
	Owner     string
	Name      string
	URL       string
	CreatedAt time.Time
}

// FullName returns owner/name.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Key returns the unique identity of the repository across providers.
func (r Repository) Key() string {
	p := r.Provider
	if p == "" {
		p = GitHub
	}
	return p + "/" + r.Owner + "/" + r.Name
}

// ParseFullName splits "owner/name" into a Repository for the given provider.
func ParseFullName(providerName, fullName string) (Repository, error) {
	if providerName == "" {
		providerName = GitHub
	}
	i := strings.LastIndex(fullName, "/")
	if i <= 0 || i == len(fullName)-1 {
		return Repository{}, fmt.Errorf("invalid repository %q: want owner/name", fullName)
	}
	owner, name := fullName[:i], fullName[i+1:]
	// GitLab namespaces may nest groups; GitHub owners may not.
	if providerName != GitLab && strings.Contains(owner, "/") {
		return Repository{}, fmt.Errorf("invalid repository %q: want owner/name", fullName)
	}
	return Repository{Provider: providerName, Owner: owner, Name: name}, nil
}

// WebURL returns the browser URL for the repository when URL is unset.
func (r Repository) WebURL() string {
	if r.URL != "" {
		return r.URL
	}
	switch r.Provider {
	case GitLab:
		return "https://gitlab.com/" + r.FullName()
	default:
		return "https://github.com/" + r.FullName()
	}
}
