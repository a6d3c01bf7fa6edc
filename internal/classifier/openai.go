package classifier

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/attune/pkg/models"
)

const openaiProviderName = "openai"

// OpenAIGateway classifies messages through OpenAI's chat completions API in
// JSON mode. Interchangeable with AnthropicGateway behind the Classifier
// interface.
type OpenAIGateway struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// OpenAIConfig configures the OpenAI gateway.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the default API base URL (optional, for
	// OpenAI-compatible endpoints).
	BaseURL string

	// Model defaults to gpt-4o-mini.
	Model string

	// MaxTokens bounds the response. Default: 1024.
	MaxTokens int

	// Timeout is the hard deadline on each classification call.
	// Default: 10s.
	Timeout time.Duration
}

// NewOpenAIGateway creates an OpenAI-backed classification gateway.
func NewOpenAIGateway(config OpenAIConfig) (*OpenAIGateway, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIGateway{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.Model,
		maxTokens: config.MaxTokens,
		timeout:   config.Timeout,
	}, nil
}

// Classify resolves all intent aspects in one round trip.
// Provider identifies this gateway in metrics and error reports.
func (g *OpenAIGateway) Provider() string { return openaiProviderName }

func (g *OpenAIGateway) Classify(ctx context.Context, message string, turns []models.ContextTurn) (*models.MessageIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classificationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPayload(message, turns)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformed(openaiProviderName, "response contains no choices", nil)
	}

	return DecodeIntent(openaiProviderName, resp.Choices[0].Message.Content)
}

func mapOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return unavailable(openaiProviderName, 0, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return unavailable(openaiProviderName, apiErr.HTTPStatusCode, err)
	}

	return unavailable(openaiProviderName, 0, err)
}
