package registry

import (
	"fmt"

	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/drewdunne/prwatch/internal/provider/github"
	"github.com/drewdunne/prwatch/internal/provider/gitlab"
)

// Registry builds code host adapters bound to explicit tokens.
type Registry struct {
	baseURLs map[string]string
}

// New creates a new provider registry from config. Only base URL overrides
// are read; tokens are supplied per call.
func New(cfg *config.Config) *Registry {
	r := &Registry{
		baseURLs: make(map[string]string),
	}
	if cfg == nil {
		return r
	}

	for _, name := range []string{provider.GitHub, provider.GitLab} {
		if u := cfg.ProviderBaseURL(name); u != "" {
			r.baseURLs[name] = u
		}
	}

	return r
}

// CodeHost returns a fresh adapter for providerName authenticated with token.
func (r *Registry) CodeHost(providerName, token string) (provider.Provider, error) {
	if providerName == "" {
		providerName = provider.GitHub
	}
	if token == "" {
		return nil, fault.New(fault.ErrMissingCredential, providerName, "code host token is not configured")
	}

	baseURL := r.baseURLs[providerName]
	switch providerName {
	case provider.GitHub:
		var opts []github.Option
		if baseURL != "" {
			opts = append(opts, github.WithBaseURL(baseURL))
		}
		return github.New(token, opts...), nil
	case provider.GitLab:
		var opts []gitlab.Option
		if baseURL != "" {
			opts = append(opts, gitlab.WithBaseURL(baseURL))
		}
		return gitlab.New(token, opts...), nil
	default:
		return nil, fault.New(fault.ErrInvalidConfig, "registry", fmt.Sprintf("unknown provider %q", providerName))
	}
}

// List returns the supported provider names.
func (r *Registry) List() []string {
	return []string{provider.GitHub, provider.GitLab}
}
