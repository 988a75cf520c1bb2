package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/meridian/internal/config"
	"github.com/sells-group/meridian/internal/resilience"
	"github.com/sells-group/meridian/pkg/anthropic"
	"github.com/sells-group/meridian/pkg/openai"
)

// AnthropicCompleter runs completions through the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates a Completer backed by an Anthropic client.
func NewAnthropicCompleter(client anthropic.Client, model string, maxTokens int64) *AnthropicCompleter {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicCompleter{client: client, model: model, maxTokens: maxTokens}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      []anthropic.SystemBlock{{Text: system}},
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return "", classify(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(c.model, "extract")
	return resp.Text(), nil
}

// OpenAICompleter runs completions through the OpenAI Chat Completions API in
// JSON-object mode.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter creates a Completer backed by an OpenAI client.
func NewOpenAICompleter(client openai.Client, model string) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model}
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:        c.model,
		SystemPrompt: system,
		UserPrompt:   user,
		JSONObject:   true,
	})
	if err != nil {
		return "", classify(err, openai.StatusCode(err))
	}
	resp.Usage.LogCost(c.model, "extract")
	return resp.Content, nil
}

func classify(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}

// NewCompleter builds the configured provider's Completer. It returns nil
// when the provider is "none" or its API key is empty.
func NewCompleter(cfg *config.Config) (Completer, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, nil
		}
		return NewAnthropicCompleter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	case "openai":
		if cfg.OpenAI.Key == "" {
			return nil, nil
		}
		return NewOpenAICompleter(openai.NewClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL), cfg.OpenAI.Model), nil
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("extract: unknown llm provider %q", cfg.LLM.Provider)
	}
}

// FromConfig assembles an Extractor from config. cache may be nil. onState,
// when set, observes circuit breaker transitions in addition to logging.
func FromConfig(cfg *config.Config, cache Cache, onState func(name string, from, to resilience.CircuitState)) (*Extractor, error) {
	completer, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}
	if completer == nil {
		zap.L().Info("extract: no llm credential configured, using regex extraction only",
			zap.String("provider", cfg.LLM.Provider))
	}

	cbCfg := resilience.FromCircuitConfig("llm", cfg.LLM.CircuitFailureThreshold, cfg.LLM.CircuitResetSecs)
	cbCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		resilience.LogStateChange(name, from, to)
		if onState != nil {
			onState(name, from, to)
		}
	}

	opts := Options{
		Completer:     completer,
		Cache:         cache,
		Breaker:       resilience.NewCircuitBreaker(cbCfg),
		MaxInputChars: cfg.LLM.MaxInputChars,
		Timeout:       time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	}
	if rpm := cfg.LLM.RequestsPerMinute; rpm > 0 {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return New(opts), nil
}
