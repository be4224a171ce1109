package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadConfig_ValidFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "0.0.0.0"
  port: 8080

logging:
  dir: "/var/log/prwatch"
  retention_days: 30

jira:
  domain: "acme.atlassian.net"
  email: "bot@acme.io"

sync:
  interval_seconds: 120

repositories:
  - owner: acme
    name: api
  - provider: gitlab
    owner: acme/platform
    name: infra
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Logging.Dir != "/var/log/prwatch" {
		t.Errorf("Logging.Dir = %q, want %q", cfg.Logging.Dir, "/var/log/prwatch")
	}
	if cfg.Sync.IntervalSeconds != 120 {
		t.Errorf("Sync.IntervalSeconds = %d, want %d", cfg.Sync.IntervalSeconds, 120)
	}
	if len(cfg.Repositories) != 2 {
		t.Fatalf("len(Repositories) = %d, want 2", len(cfg.Repositories))
	}
	if cfg.Repositories[1].Owner != "acme/platform" {
		t.Errorf("Repositories[1].Owner = %q, want %q", cfg.Repositories[1].Owner, "acme/platform")
	}
	// Defaults survive partial files.
	if cfg.Pipeline.MaxConcurrent != 4 {
		t.Errorf("Pipeline.MaxConcurrent = %d, want default 4", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, "memory")
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("PRWATCH_TEST_JIRA_TOKEN", "secret-from-env")
	t.Setenv("JIRA_TOKEN", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("jira:\n  token: \"${PRWATCH_TEST_JIRA_TOKEN}\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jira.Token != "secret-from-env" {
		t.Errorf("Jira.Token = %q, want %q", cfg.Jira.Token, "secret-from-env")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for nonexistent file, got nil")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.GitHub.Token = "from-file"
	cfg.Jira.Email = "file@acme.io"

	lookuper := envconfig.MapLookuper(map[string]string{
		"GITHUB_TOKEN":         "from-env",
		"JIRA_DOMAIN":          "acme.atlassian.net",
		"OPENAI_API_KEY":       "sk-test",
		"ANTHROPIC_API_KEY":    "ant-test",
		"PRWATCH_DATABASE_URL": "postgres://localhost/prwatch",
	})
	if err := cfg.ApplyEnv(context.Background(), lookuper); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"github token overridden", cfg.Providers.GitHub.Token, "from-env"},
		{"jira domain set", cfg.Jira.Domain, "acme.atlassian.net"},
		{"jira email kept", cfg.Jira.Email, "file@acme.io"},
		{"openai key for default strategy", cfg.LLM.APIKey, "sk-test"},
		{"database url", cfg.Store.DSN, "postgres://localhost/prwatch"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestApplyEnv_AnthropicStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Strategy = "anthropic"

	lookuper := envconfig.MapLookuper(map[string]string{
		"OPENAI_API_KEY":    "sk-test",
		"ANTHROPIC_API_KEY": "ant-test",
	})
	if err := cfg.ApplyEnv(context.Background(), lookuper); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.LLM.APIKey != "ant-test" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "ant-test")
	}
}
