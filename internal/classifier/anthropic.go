package classifier

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/attune/pkg/models"
)

const anthropicProviderName = "anthropic"

// AnthropicGateway classifies messages through Anthropic's Messages API.
// A single request resolves every aspect of the MessageIntent, so the cost
// is bounded to one model call per classified message.
//
// Safe for concurrent use; each Classify call is an independent request.
type AnthropicGateway struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// AnthropicConfig configures the Anthropic gateway.
type AnthropicConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the default API base URL (optional).
	BaseURL string

	// Model defaults to claude-3-5-haiku-latest; classification favors a
	// small fast model.
	Model string

	// MaxTokens bounds the response. Default: 1024.
	MaxTokens int

	// Timeout is the hard deadline on each classification call. On expiry
	// the call fails as unavailable and no inline retry is attempted.
	// Default: 10s.
	Timeout time.Duration
}

// NewAnthropicGateway creates an Anthropic-backed classification gateway.
func NewAnthropicGateway(config AnthropicConfig) (*AnthropicGateway, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-latest"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicGateway{
		client:    anthropic.NewClient(options...),
		model:     config.Model,
		maxTokens: int64(config.MaxTokens),
		timeout:   config.Timeout,
	}, nil
}

// Classify resolves all intent aspects in one round trip. It fails only with
// ErrUnavailable (network, quota, timeout) or ErrMalformed (schema
// violation); it never returns a partially-populated intent silently.
// Provider identifies this gateway in metrics and error reports.
func (g *AnthropicGateway) Provider() string { return anthropicProviderName }

func (g *AnthropicGateway) Classify(ctx context.Context, message string, turns []models.ContextTurn) (*models.MessageIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: classificationSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPayload(message, turns))),
		},
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, malformed(anthropicProviderName, "response contains no text content", nil)
	}

	return DecodeIntent(anthropicProviderName, sb.String())
}

// mapAnthropicError folds SDK errors into the two-kind taxonomy. Everything
// on the transport path, including the hard timeout, is unavailable.
func mapAnthropicError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return unavailable(anthropicProviderName, 0, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return unavailable(anthropicProviderName, apiErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return unavailable(anthropicProviderName, 0, err)
	}

	return unavailable(anthropicProviderName, 0, err)
}
