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
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default Ollama chat model.
	DefaultOllamaModel = "llama3.2"
)

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	Host       string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OllamaGenerator answers with Ollama's /api/generate.
type OllamaGenerator struct {
	client *http.Client
	config OllamaConfig
}

var _ Generator = (*OllamaGenerator)(nil)

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

// Temperature is always sent: Ollama's own default is not 0.
type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates an Ollama generator.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
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
	return &OllamaGenerator{client: &http.Client{}, config: cfg}
}

// Generate returns the model's completion for prompt.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = g.config.MaxRetries
	retry.InitialDelay = g.config.RetryDelay
	retry.ShouldRetry = httpjson.Retryable

	req := ollamaGenerateRequest{
		Model:   g.config.Model,
		Prompt:  prompt,
		Options: ollamaOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	}

	answer, err := errors.RetryWithResult(ctx, retry, func() (string, error) {
		return httpjson.WithTimeout(ctx, g.config.Timeout, func(ctx context.Context) (string, error) {
			var resp ollamaGenerateResponse
			if err := httpjson.Post(ctx, g.client, g.config.Host+"/api/generate", nil, req, &resp); err != nil {
				return "", err
			}
			return resp.Response, nil
		})
	})
	if err != nil {
		return "", generationError(ctx, "ollama", g.config.Model, err)
	}
	return strings.TrimSpace(answer), nil
}

// ModelName returns the model identifier.
func (g *OllamaGenerator) ModelName() string {
	return g.config.Model
}

// Close releases idle connections.
func (g *OllamaGenerator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// generationError maps a provider failure to its error kind.
func generationError(ctx context.Context, provider, model string, err error) error {
	if errors.IsCancelled(err) {
		return errors.FromContext(ctx, err)
	}
	return errors.GenerationError(fmt.Sprintf("%s generation failed for model %s", provider, model), err).
		WithDetail("provider", provider)
}
