// Package genai talks to the generation service. A thin Completer abstracts
// the OpenAI API; Client wraps it with retries, exponential backoff, model
// fallback, and circuit-breaker gating.
package genai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/easygo-cv/cvforge/pkg/models"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call against a specific model.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completion is the produced text plus accounting from the service.
type Completion struct {
	Text      string
	ModelUsed string
	Usage     models.Usage
}

// Completer performs one completion attempt. Implementations report failures
// through errors that Retryable can inspect.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// OpenAICompleter is a Completer backed by the OpenAI chat completions API.
type OpenAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter creates a completer. baseURL may be empty for the
// default endpoint.
func NewOpenAICompleter(apiKey, baseURL string) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompleter{client: openai.NewClient(opts...)}
}

// Complete implements Completer.
func (o *OpenAICompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion for %s: no choices returned", req.Model)
	}

	return &Completion{
		Text:      resp.Choices[0].Message.Content,
		ModelUsed: resp.Model,
		Usage: models.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
