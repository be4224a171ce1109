package config

import (
	"fmt"
	"strings"

	"github.com/drewdunne/prwatch/internal/fault"
)

// Validate checks structural settings. Missing credentials are not reported
// here; they surface when a validation run is attempted.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown logging.level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown logging.format %q", c.Logging.Format))
	}
	switch c.LLM.Strategy {
	case "openai", "anthropic":
	default:
		problems = append(problems, fmt.Sprintf("unknown llm.strategy %q", c.LLM.Strategy))
	}
	if c.LLM.MaxTokens < 0 {
		problems = append(problems, "llm.max_tokens must not be negative")
	}
	if c.Sync.IntervalSeconds <= 0 {
		problems = append(problems, "sync.interval_seconds must be positive")
	}
	if c.Sync.MaxConcurrent <= 0 {
		problems = append(problems, "sync.max_concurrent must be positive")
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		problems = append(problems, "pipeline.max_concurrent must be positive")
	}
	if c.Notifications.Capacity <= 0 {
		problems = append(problems, "notifications.capacity must be positive")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	seen := make(map[string]bool)
	for i, r := range c.Repositories {
		switch r.Provider {
		case "", "github", "gitlab":
		default:
			problems = append(problems, fmt.Sprintf("repositories[%d]: unknown provider %q", i, r.Provider))
		}
		if r.Owner == "" || r.Name == "" || strings.Contains(r.Name, "/") {
			problems = append(problems, fmt.Sprintf("repositories[%d]: owner and name are required", i))
			continue
		}
		key := coalesce(r.Provider, "github") + "/" + r.Owner + "/" + r.Name
		if seen[key] {
			problems = append(problems, fmt.Sprintf("repositories[%d]: duplicate %s", i, key))
		}
		seen[key] = true
	}

	if len(problems) > 0 {
		return fault.New(fault.ErrInvalidConfig, "config", strings.Join(problems, "; "))
	}
	return nil
}
