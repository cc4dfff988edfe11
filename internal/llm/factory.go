package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/config"
	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// Circuit breaker settings for remote generators.
const (
	BreakerMaxFailures = 3
	BreakerReset       = 30 * time.Second
)

// New creates the generator selected by cfg.LLM.Provider. Remote
// generators are wrapped in a circuit breaker.
func New(_ context.Context, cfg *config.Config) (Generator, error) {
	var g Generator

	switch strings.ToLower(cfg.LLM.Provider) {
	case config.ProviderStatic:
		g = NewStaticGenerator()
	case config.ProviderOllama:
		g = WithBreaker(NewOllamaGenerator(OllamaConfig{
			Host:       cfg.LLM.Host,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: DefaultMaxRetries,
		}), BreakerMaxFailures, BreakerReset)
	case config.ProviderOpenAI:
		og, err := NewOpenAIGenerator(OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: DefaultMaxRetries,
		})
		if err != nil {
			return nil, err
		}
		g = WithBreaker(og, BreakerMaxFailures, BreakerReset)
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown llm provider %q", cfg.LLM.Provider), nil)
	}

	slog.Debug("generator ready",
		slog.String("provider", cfg.LLM.Provider),
		slog.String("model", g.ModelName()))
	return g, nil
}

// OptionsFromConfig returns the generation options configured in cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}
