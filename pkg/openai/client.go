// Package openai wraps the OpenAI Chat Completions API behind a small interface.
package openai

import (
	"context"
	"errors"
	"math"

	sdk "github.com/sashabaranov/go-openai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the OpenAI operations used for field extraction.
type Client interface {
	CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a single system+user chat completion.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	// JSONObject asks the model for a JSON object response.
	JSONObject bool
}

// CompletionResponse carries the first choice and usage.
type CompletionResponse struct {
	ID      string
	Model   string
	Content string
	Usage   Usage
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// LogCost logs token usage with structured zap fields.
func (u Usage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("provider", "openai"),
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int("input_tokens", u.PromptTokens),
		zap.Int("output_tokens", u.CompletionTokens),
	)
}

// StatusCode returns the HTTP status of an API error, or 0 if err did not
// come from an API response.
func StatusCode(err error) int {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

type sdkClient struct {
	client *sdk.Client
}

// NewClient creates a Client. An empty baseURL uses the public API.
func NewClient(apiKey, baseURL string) Client {
	cfg := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &sdkClient{client: sdk.NewClientWithConfig(cfg)}
}

// zeroTemperature is the smallest value go-openai will serialize; an exact 0
// is dropped by omitempty and the API default of 1 applies instead.
const zeroTemperature = math.SmallestNonzeroFloat32

func (c *sdkClient) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	creq := sdk.ChatCompletionRequest{
		Model: req.Model,
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: sdk.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: zeroTemperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONObject {
		creq.ResponseFormat = &sdk.ChatCompletionResponseFormat{Type: sdk.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: completion returned no choices")
	}

	return &CompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
