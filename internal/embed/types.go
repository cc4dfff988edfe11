// Package embed turns text into embedding vectors.
//
// Adapters: Ollama (/api/embed), OpenAI (/embeddings), and a static hashing
// embedder that needs no network. CachedEmbedder adds an LRU cache for
// repeated query text.
package embed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// DefaultBatchSize is the default number of texts per provider request.
	DefaultBatchSize = 32

	// MaxBatchSize caps provider requests to bound memory.
	MaxBatchSize = 256

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retries for transient failures.
	DefaultMaxRetries = 3

	// StaticDimensions is the dimension of the static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
//
// Implementations report failures as errors and never substitute zero
// vectors. Empty text is an error.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// ErrEmptyText is returned for empty or whitespace-only input.
var ErrEmptyText = fmt.Errorf("cannot embed empty text")

// checkTexts rejects empty input texts.
func checkTexts(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}
	return nil
}

// checkVectors verifies that a provider returned one non-zero vector of
// the expected dimension per input. dims of 0 accepts any consistent size.
func checkVectors(vecs [][]float32, n, dims int) error {
	if len(vecs) != n {
		return fmt.Errorf("provider returned %d embeddings for %d texts", len(vecs), n)
	}
	if dims == 0 && n > 0 {
		dims = len(vecs[0])
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("embedding %d is empty", i)
		}
		if len(v) != dims {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dims)
		}
		if isZero(v) {
			return fmt.Errorf("embedding %d is a zero vector", i)
		}
	}
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// normalizeVector scales v to unit length. Zero vectors are returned as is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// toFloat32 converts a JSON-decoded vector.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
