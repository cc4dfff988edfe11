// Package retrieve selects the chunks most similar to a question.
package retrieve

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 4

// Searcher is the query side of a vector index.
type Searcher interface {
	Query(ctx context.Context, text string, k int, embedder embed.Embedder) ([]store.Hit, error)
}

// Result is a retrieved chunk. Rank starts at 1.
type Result struct {
	Chunk chunk.Chunk `json:"chunk"`
	Score float32     `json:"score"`
	Rank  int         `json:"rank"`
}

// Retriever returns the K most similar chunks, optionally dropping those
// scoring below MinScore.
type Retriever struct {
	K        int
	MinScore float32
}

// New creates a Retriever. minScore of 0 disables the filter.
func New(k int, minScore float32) (*Retriever, error) {
	if k <= 0 {
		return nil, errors.ConfigError(fmt.Sprintf("retrieval k must be positive, got %d", k), nil)
	}
	if minScore < -1 || minScore > 1 {
		return nil, errors.ConfigError(fmt.Sprintf("retrieval min_score must be in [-1, 1], got %g", minScore), nil)
	}
	return &Retriever{K: k, MinScore: minScore}, nil
}

// Retrieve embeds question and returns up to K results by descending score.
func (r *Retriever) Retrieve(ctx context.Context, idx Searcher, embedder embed.Embedder, question string) ([]Result, error) {
	if r.K <= 0 {
		return nil, errors.ConfigError(fmt.Sprintf("retrieval k must be positive, got %d", r.K), nil)
	}
	if idx == nil {
		return nil, errors.NotBuiltError("no index to retrieve from")
	}

	hits, err := idx.Query(ctx, question, r.K, embedder)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if r.MinScore != 0 && h.Score < r.MinScore {
			continue
		}
		results = append(results, Result{Chunk: h.Chunk, Score: h.Score, Rank: len(results) + 1})
	}
	return results, nil
}

// Contents returns the chunk texts in rank order.
func Contents(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.Content
	}
	return out
}
