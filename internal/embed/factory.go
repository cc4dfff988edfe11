package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/pdfrag/internal/config"
	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// New creates the embedder selected by cfg.Embeddings.Provider, wrapped in
// a CachedEmbedder when a cache size is configured. There is no silent
// fallback between providers: an index built with one model cannot be
// queried with another.
func New(ctx context.Context, cfg *config.Config) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch strings.ToLower(cfg.Embeddings.Provider) {
	case config.ProviderStatic:
		inner = NewStaticEmbedder()
	case config.ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Embeddings.Host,
			Model:      cfg.Embeddings.Model,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.EmbeddingsTimeout(),
			MaxRetries: DefaultMaxRetries,
		})
	case config.ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.Embeddings.Model,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.EmbeddingsTimeout(),
			MaxRetries: DefaultMaxRetries,
		})
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown embeddings provider %q", cfg.Embeddings.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("embedder ready",
		slog.String("provider", cfg.Embeddings.Provider),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	if cfg.Embeddings.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
	}
	return inner, nil
}
