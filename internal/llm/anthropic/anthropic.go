// Package anthropic implements llm.Analyzer over the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/llm"
)

const (
	service          = "anthropic"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
)

var _ llm.Analyzer = (*Analyzer)(nil)

func init() {
	llm.Register(llm.StrategyAnthropic, func(cfg config.LLMConfig) llm.Analyzer {
		opts := []Option{WithMaxTokens(cfg.MaxTokens)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return New(cfg.APIKey, cfg.Model, opts...)
	})
}

// Analyzer judges diffs with a Claude model.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Option configures the analyzer.
type Option func(*options)

type options struct {
	baseURL   string
	maxTokens int
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the reply length. Non-positive values keep the default.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// New creates an Anthropic analyzer with SDK retries disabled.
func New(apiKey, model string, opts ...Option) *Analyzer {
	o := options{maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxTokens <= 0 {
		o.maxTokens = defaultMaxTokens
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	if model == "" {
		model = defaultModel
	}

	return &Analyzer{
		client:    anthropic.NewClient(clientOpts...),
		model:     model,
		maxTokens: int64(o.maxTokens),
	}
}

// Analyze sends one messages request and parses the concatenated text blocks.
func (a *Analyzer) Analyze(ctx context.Context, ticket llm.Ticket, diff string) (*llm.Verdict, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: llm.SystemInstruction}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(llm.UserMessage(ticket, diff))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, llm.StatusError(service, apiErr.StatusCode, err)
		}
		return nil, fault.Unavailable(service, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fault.New(fault.ErrModelResponseMalformed, service, "response has no text content")
	}
	return llm.ParseVerdict(text.String())
}
