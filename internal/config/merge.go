package config

// Credentials is the explicit set of secrets a single validation run needs.
// Adapters receive these values; none of them read configuration directly.
type Credentials struct {
	CodeHostToken string
	Jira          JiraConfig
	LLM           LLMConfig
}

// CredentialsFor resolves credentials for one repository. A per-repository
// token takes precedence over the provider token.
func (c *Config) CredentialsFor(providerName, owner, name string) Credentials {
	var token string
	switch providerName {
	case "gitlab":
		token = c.Providers.GitLab.Token
	default:
		token = c.Providers.GitHub.Token
	}

	for _, r := range c.Repositories {
		if coalesce(r.Provider, "github") == coalesce(providerName, "github") && r.Owner == owner && r.Name == name {
			token = coalesce(r.Token, token)
			break
		}
	}

	return Credentials{
		CodeHostToken: token,
		Jira:          c.Jira,
		LLM:           c.LLM,
	}
}

// ProviderBaseURL returns the configured API base URL override, if any.
func (c *Config) ProviderBaseURL(providerName string) string {
	switch providerName {
	case "gitlab":
		return c.Providers.GitLab.BaseURL
	default:
		return c.Providers.GitHub.BaseURL
	}
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
