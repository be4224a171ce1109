// Package openai implements llm.Analyzer over the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"

	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	service      = "openai"
	defaultModel = "gpt-4"
)

// Ensure Analyzer implements llm.Analyzer.
var _ llm.Analyzer = (*Analyzer)(nil)

func init() {
	llm.Register(llm.StrategyOpenAI, func(cfg config.LLMConfig) llm.Analyzer {
		var opts []Option
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return New(cfg.APIKey, cfg.Model, opts...)
	})
}

// Analyzer judges diffs with a chat completion model.
type Analyzer struct {
	client openai.Client
	model  string
}

// Option configures the analyzer.
type Option func(*options)

type options struct {
	baseURL string
}

// WithBaseURL sets a custom base URL (compatible gateways, tests).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// New creates an OpenAI analyzer. SDK retries are disabled; a failed call is
// reported to the caller as is.
func New(apiKey, model string, opts ...Option) *Analyzer {
	var o options
	for _, opt := range opts {
		opt(&o)
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
		client: openai.NewClient(clientOpts...),
		model:  model,
	}
}

// Analyze sends one chat completion request and parses its content.
func (a *Analyzer) Analyze(ctx context.Context, ticket llm.Ticket, diff string) (*llm.Verdict, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(llm.SystemInstruction),
			openai.UserMessage(llm.UserMessage(ticket, diff)),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, llm.StatusError(service, apiErr.StatusCode, err)
		}
		return nil, fault.Unavailable(service, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fault.New(fault.ErrModelResponseMalformed, service, "response has no choices")
	}
	return llm.ParseVerdict(resp.Choices[0].Message.Content)
}
