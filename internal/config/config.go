package config

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Jira          JiraConfig          `yaml:"jira"`
	LLM           LLMConfig           `yaml:"llm"`
	Sync          SyncConfig          `yaml:"sync"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Store         StoreConfig         `yaml:"store"`
	Repositories  []RepositoryConfig  `yaml:"repositories"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Dir holds run transcripts; empty disables them.
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
}

// ProvidersConfig holds code host configurations.
type ProvidersConfig struct {
	GitHub GitHubConfig `yaml:"github"`
	GitLab GitLabConfig `yaml:"gitlab"`
}

// GitHubConfig holds GitHub-specific settings.
type GitHubConfig struct {
	Token         string `yaml:"token"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

// GitLabConfig holds GitLab-specific settings.
type GitLabConfig struct {
	Token         string `yaml:"token"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

// JiraConfig holds issue tracker credentials.
type JiraConfig struct {
	Domain string `yaml:"domain"`
	Email  string `yaml:"email"`
	Token  string `yaml:"token"`
}

// LLMConfig selects and configures the language model.
type LLMConfig struct {
	Strategy  string `yaml:"strategy"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// SyncConfig holds synchronization engine settings.
type SyncConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxConcurrent   int `yaml:"max_concurrent"`
}

// NotificationsConfig bounds the notification log.
type NotificationsConfig struct {
	Capacity    int `yaml:"capacity"`
	MaxAgeHours int `yaml:"max_age_hours"`
}

// PipelineConfig holds on-demand validation settings.
type PipelineConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	History       int `yaml:"history"`
}

// StoreConfig selects the validation store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RepositoryConfig is a repository watched from startup.
type RepositoryConfig struct {
	Provider string `yaml:"provider"`
	Owner    string `yaml:"owner"`
	Name     string `yaml:"name"`
	// Token overrides the provider token for this repository.
	Token string `yaml:"token"`
}

// envOverlay lists the well-known variables that take precedence over the file.
type envOverlay struct {
	GitHubToken     string `env:"GITHUB_TOKEN"`
	GitLabToken     string `env:"GITLAB_TOKEN"`
	JiraDomain      string `env:"JIRA_DOMAIN"`
	JiraEmail       string `env:"JIRA_EMAIL"`
	JiraToken       string `env:"JIRA_TOKEN"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	DatabaseURL     string `env:"PRWATCH_DATABASE_URL"`
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 7000,
		},
		Logging: LoggingConfig{
			RetentionDays: 30,
			Level:         "info",
			Format:        "text",
		},
		LLM: LLMConfig{
			Strategy: "openai",
		},
		Sync: SyncConfig{
			IntervalSeconds: 60,
			MaxConcurrent:   4,
		},
		Notifications: NotificationsConfig{
			Capacity:    500,
			MaxAgeHours: 7 * 24,
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: 4,
			History:       200,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
	}
}

// Load reads and parses the config file at the given path, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.ApplyEnv(context.Background(), envconfig.OsLookuper()); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays credentials from the environment. Unset variables leave
// the file values in place.
func (c *Config) ApplyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	var env envOverlay
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}

	c.Providers.GitHub.Token = coalesce(env.GitHubToken, c.Providers.GitHub.Token)
	c.Providers.GitLab.Token = coalesce(env.GitLabToken, c.Providers.GitLab.Token)
	c.Jira.Domain = coalesce(env.JiraDomain, c.Jira.Domain)
	c.Jira.Email = coalesce(env.JiraEmail, c.Jira.Email)
	c.Jira.Token = coalesce(env.JiraToken, c.Jira.Token)
	c.Store.DSN = coalesce(env.DatabaseURL, c.Store.DSN)

	switch c.LLM.Strategy {
	case "anthropic":
		c.LLM.APIKey = coalesce(env.AnthropicAPIKey, c.LLM.APIKey)
	default:
		c.LLM.APIKey = coalesce(env.OpenAIAPIKey, c.LLM.APIKey)
	}

	return nil
}
