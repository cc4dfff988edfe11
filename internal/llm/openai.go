package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/httpjson"
)

const (
	// DefaultOpenAIBaseURL is the OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the default OpenAI chat model.
	DefaultOpenAIModel = "gpt-4"
)

// OpenAIConfig configures the OpenAI generator.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL allows Azure OpenAI or compatible servers.
	BaseURL string

	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIGenerator answers with the /chat/completions API.
type OpenAIGenerator struct {
	client *http.Client
	config OpenAIConfig
}

var _ Generator = (*OpenAIGenerator)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIGenerator creates an OpenAI generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "openai: API key is required", nil).
			WithSuggestion("Set OPENAI_API_KEY or openai.api_key in the config file")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = errors.DefaultRetryConfig().InitialDelay
	}
	return &OpenAIGenerator{client: &http.Client{}, config: cfg}, nil
}

// Generate sends prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = g.config.MaxRetries
	retry.InitialDelay = g.config.RetryDelay
	retry.Jitter = true
	retry.ShouldRetry = httpjson.Retryable

	req := chatCompletionRequest{
		Model:       g.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + g.config.APIKey}

	answer, err := errors.RetryWithResult(ctx, retry, func() (string, error) {
		return httpjson.WithTimeout(ctx, g.config.Timeout, func(ctx context.Context) (string, error) {
			var resp chatCompletionResponse
			if err := httpjson.Post(ctx, g.client, g.config.BaseURL+"/chat/completions", headers, req, &resp); err != nil {
				return "", err
			}
			if resp.Error != nil {
				return "", fmt.Errorf("openai error (%s): %s", resp.Error.Type, resp.Error.Message)
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("openai returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		})
	})
	if err != nil {
		return "", generationError(ctx, "openai", g.config.Model, err)
	}
	return strings.TrimSpace(answer), nil
}

// ModelName returns the model identifier.
func (g *OpenAIGenerator) ModelName() string {
	return g.config.Model
}

// Close releases idle connections.
func (g *OpenAIGenerator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
