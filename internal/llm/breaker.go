package llm

import (
	"context"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// BreakerGenerator fails fast with ErrCircuitOpen after repeated failures
// of the wrapped generator.
type BreakerGenerator struct {
	inner   Generator
	breaker *errors.CircuitBreaker
}

var _ Generator = (*BreakerGenerator)(nil)

// WithBreaker wraps g in a circuit breaker that opens after maxFailures
// consecutive failures and allows a trial call after reset.
func WithBreaker(g Generator, maxFailures int, reset time.Duration) *BreakerGenerator {
	return &BreakerGenerator{
		inner: g,
		breaker: errors.NewCircuitBreaker(g.ModelName(),
			errors.WithMaxFailures(maxFailures),
			errors.WithResetTimeout(reset)),
	}
}

// Generate calls the wrapped generator unless the circuit is open.
func (b *BreakerGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return errors.Call(b.breaker, func() (string, error) {
		return b.inner.Generate(ctx, prompt, opts)
	})
}

// State returns the breaker state.
func (b *BreakerGenerator) State() errors.State {
	return b.breaker.State()
}

// ModelName returns the wrapped model name.
func (b *BreakerGenerator) ModelName() string {
	return b.inner.ModelName()
}

// Close closes the wrapped generator.
func (b *BreakerGenerator) Close() error {
	return b.inner.Close()
}

// Inner returns the wrapped generator.
func (b *BreakerGenerator) Inner() Generator {
	return b.inner
}
