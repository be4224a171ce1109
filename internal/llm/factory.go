package llm

import (
	"fmt"

	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/fault"
)

// AnalyzerFactory creates an Analyzer from model settings.
type AnalyzerFactory func(cfg config.LLMConfig) Analyzer

// registry holds registered analyzer factories by strategy.
var registry = make(map[Strategy]AnalyzerFactory)

// Register registers an analyzer factory for a strategy.
func Register(strategy Strategy, factory AnalyzerFactory) {
	registry[strategy] = factory
}

// New creates an analyzer for the configured strategy.
func New(cfg config.LLMConfig) (Analyzer, error) {
	strategy := Strategy(cfg.Strategy)
	if strategy == "" {
		strategy = StrategyOpenAI
	}

	factory, ok := registry[strategy]
	if !ok {
		switch strategy {
		case StrategyOpenAI, StrategyAnthropic:
			return nil, fault.New(fault.ErrInvalidConfig, "llm",
				fmt.Sprintf("%s strategy not registered (import _ \"github.com/drewdunne/prwatch/internal/llm/%s\")", strategy, strategy))
		default:
			return nil, fault.New(fault.ErrInvalidConfig, "llm", fmt.Sprintf("unknown strategy %q", cfg.Strategy))
		}
	}
	if cfg.APIKey == "" {
		return nil, fault.New(fault.ErrMissingCredential, string(strategy), "model API key is not configured")
	}

	return factory(cfg), nil
}
