package embed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/httpjson"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general purpose text embedding model.
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to use.
	Model string

	// Dimensions overrides detection. Zero means detect.
	Dimensions int

	// BatchSize caps texts per request.
	BatchSize int

	// Timeout applies to each request attempt.
	Timeout time.Duration

	// MaxRetries for transient failures.
	MaxRetries int

	// RetryDelay is the first backoff delay.
	RetryDelay time.Duration

	// SkipHealthCheck skips the model check and dimension probe at construction.
	SkipHealthCheck bool
}

// OllamaEmbedder generates embeddings with Ollama's /api/embed.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaEmbedder creates an Ollama embedder. Unless SkipHealthCheck is
// set it verifies that the model is installed and probes its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
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

	e := &OllamaEmbedder{
		client: &http.Client{},
		config: cfg,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		if err := e.checkModel(ctx); err != nil {
			return nil, errors.EmbeddingError("ollama is not ready", err).
				WithDetail("host", cfg.Host).
				WithSuggestion(fmt.Sprintf("Start Ollama and run: ollama pull %s", cfg.Model))
		}
		if e.dims == 0 {
			vecs, err := e.EmbedBatch(ctx, []string{"dimension probe"})
			if err != nil {
				return nil, err
			}
			e.dims = len(vecs[0])
		}
	}
	return e, nil
}

// listModels returns the installed model names.
func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	var tags ollamaTagsResponse
	if err := httpjson.Get(ctx, e.client, e.config.Host+"/api/tags", nil, &tags); err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	models, err := e.listModels(ctx)
	if err != nil {
		return err
	}
	if !hasModel(models, e.config.Model) {
		return fmt.Errorf("model %s is not installed", e.config.Model)
	}
	return nil
}

// hasModel matches names with or without the ":tag" suffix.
func hasModel(installed []string, want string) bool {
	want = strings.ToLower(want)
	wantBase := strings.Split(want, ":")[0]
	for _, name := range installed {
		name = strings.ToLower(name)
		if name == want || strings.Split(name, ":")[0] == wantBase && !strings.Contains(want, ":") {
			return true
		}
	}
	return false
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize texts.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.EmbeddingError("embedder is closed", nil)
	}
	if err := checkTexts(texts); err != nil {
		return nil, errors.EmbeddingError("invalid embedding input", err)
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))

		vecs, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			if errors.IsCancelled(err) {
				return nil, errors.FromContext(ctx, err)
			}
			return nil, errors.EmbeddingError(fmt.Sprintf("ollama embedding failed for model %s", e.config.Model), err)
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = e.config.MaxRetries
	retry.InitialDelay = e.config.RetryDelay
	retry.ShouldRetry = httpjson.Retryable

	attempt := 0
	return errors.RetryWithResult(ctx, retry, func() ([][]float32, error) {
		attempt++
		vecs, err := httpjson.WithTimeout(ctx, e.config.Timeout, func(ctx context.Context) ([][]float32, error) {
			return e.doEmbed(ctx, texts)
		})
		if err != nil {
			slog.Debug("ollama embedding attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("texts", len(texts)),
				slog.String("error", err.Error()))
		}
		return vecs, err
	})
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	err := httpjson.Post(ctx, e.client, e.config.Host+"/api/embed", nil,
		ollamaEmbedRequest{Model: e.config.Model, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	dims := e.dims
	e.mu.RUnlock()

	vecs := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		vecs[i] = normalizeVector(toFloat32(v))
	}
	if err := checkVectors(vecs, len(texts), dims); err != nil {
		return nil, err
	}

	if dims == 0 {
		e.mu.Lock()
		if e.dims == 0 {
			e.dims = len(vecs[0])
		}
		e.mu.Unlock()
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension, or 0 before it is known.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available checks that Ollama is running and the model is installed.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	return !closed && e.checkModel(ctx) == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
