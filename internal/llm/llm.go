// Package llm provides answer generators: a Generator interface with
// Ollama, OpenAI and offline extractive implementations.
package llm

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the default number of retries for transient failures.
	DefaultMaxRetries = 2
)

// Generator produces an answer for a fully assembled prompt.
type Generator interface {
	// Generate returns the completion for prompt.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Options configures a single generation.
type Options struct {
	// Temperature controls randomness. 0 is deterministic.
	Temperature float64

	// MaxTokens caps the completion length. 0 leaves it to the provider.
	MaxTokens int
}
