package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/httpjson"
)

const (
	// DefaultOpenAIBaseURL is the OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-ada-002"
)

// openAIModelDimensions lists known model dimensions.
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL allows Azure OpenAI or compatible servers.
	BaseURL string

	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIEmbedder generates embeddings with the OpenAI /embeddings API.
type OpenAIEmbedder struct {
	client *http.Client
	config OpenAIConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "openai: API key is required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = openAIModelDimensions[cfg.Model]
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
	return &OpenAIEmbedder{client: &http.Client{}, config: cfg}, nil
}

// Embed generates the embedding for a single text.
func (s *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize texts.
func (s *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, errors.EmbeddingError("embedder is closed", nil)
	}
	if err := checkTexts(texts); err != nil {
		return nil, errors.EmbeddingError("invalid embedding input", err)
	}

	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = s.config.MaxRetries
	retry.InitialDelay = s.config.RetryDelay
	retry.Jitter = true
	retry.ShouldRetry = httpjson.Retryable

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.config.BatchSize {
		batch := texts[start:min(start+s.config.BatchSize, len(texts))]

		vecs, err := errors.RetryWithResult(ctx, retry, func() ([][]float32, error) {
			return httpjson.WithTimeout(ctx, s.config.Timeout, func(ctx context.Context) ([][]float32, error) {
				return s.doEmbed(ctx, batch)
			})
		})
		if err != nil {
			if errors.IsCancelled(err) {
				return nil, errors.FromContext(ctx, err)
			}
			return nil, errors.EmbeddingError(fmt.Sprintf("openai embedding failed for model %s", s.config.Model), err)
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (s *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openAIEmbeddingResponse
	err := httpjson.Post(ctx, s.client, s.config.BaseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + s.config.APIKey},
		openAIEmbeddingRequest{Model: s.config.Model, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}

	// Results may arrive out of order; place them by index.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = toFloat32(d.Embedding)
	}
	if err := checkVectors(vecs, len(texts), s.config.Dimensions); err != nil {
		return nil, err
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension, 0 for unknown models.
func (s *OpenAIEmbedder) Dimensions() int {
	return s.config.Dimensions
}

// ModelName returns the model identifier.
func (s *OpenAIEmbedder) ModelName() string {
	return s.config.Model
}

// Available reports whether the embedder is open. It does not call the API.
func (s *OpenAIEmbedder) Available(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close releases idle connections.
func (s *OpenAIEmbedder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
