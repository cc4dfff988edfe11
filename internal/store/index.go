package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// Index is an immutable set of embedded chunks. Query is safe for
// concurrent use.
type Index struct {
	entries    []Entry
	dims       int
	model      string
	documentID string
	createdAt  time.Time

	exactThreshold int
	m              int
	efSearch       int
	graph          *graphIndex
}

// Build embeds every chunk and returns the resulting index. Any embedding
// failure fails the whole build; no partial index is returned.
func Build(ctx context.Context, chunks []chunk.Chunk, embedder embed.Embedder, opts BuildOptions) (*Index, error) {
	if embedder == nil {
		return nil, errors.InternalError("build: embedder is nil", nil)
	}
	if len(chunks) == 0 {
		return nil, errors.ValidationError("cannot build an index from zero chunks", nil)
	}
	opts = opts.withDefaults()
	start := time.Now()

	vectors := make([][]float32, len(chunks))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for lo := 0; lo < len(chunks); lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, len(chunks))
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			texts := make([]string, hi-lo)
			for i := lo; i < hi; i++ {
				texts[i-lo] = chunks[i].Content
			}
			vecs, err := embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
			}
			copy(vectors[lo:hi], vecs)

			mu.Lock()
			done += len(texts)
			if opts.Progress != nil {
				opts.Progress(done, len(chunks))
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, buildError(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.CancelledError("index build cancelled", err)
	}

	dims := embedder.Dimensions()
	if dims == 0 {
		dims = len(vectors[0])
	}
	entries := make([]Entry, len(chunks))
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, errors.EmbeddingError(fmt.Sprintf("chunk %d has an empty embedding", i), nil)
		}
		if len(v) != dims {
			return nil, errors.EmbeddingError(fmt.Sprintf("chunk %d embedding", i),
				ErrDimensionMismatch{Expected: dims, Got: len(v)})
		}
		vec := make([]float32, dims)
		copy(vec, v)
		normalizeVectorInPlace(vec)
		entries[i] = Entry{Chunk: chunks[i], Vector: vec}
	}

	idx := newIndex(entries, dims, embedder.ModelName(), chunks[0].DocumentID, time.Now().UTC(), opts)
	if len(entries) > idx.exactThreshold {
		idx.graph = buildGraph(entries, idx.m, idx.efSearch)
	}

	slog.Debug("index built",
		slog.Int("chunks", len(entries)),
		slog.Int("dimensions", dims),
		slog.Bool("graph", idx.graph != nil),
		slog.Duration("duration", time.Since(start)))
	return idx, nil
}

func newIndex(entries []Entry, dims int, model, documentID string, createdAt time.Time, opts BuildOptions) *Index {
	opts = opts.withDefaults()
	return &Index{
		entries:        entries,
		dims:           dims,
		model:          model,
		documentID:     documentID,
		createdAt:      createdAt,
		exactThreshold: opts.ExactThreshold,
		m:              opts.M,
		efSearch:       opts.EfSearch,
	}
}

// buildError maps a batch failure to its error kind.
func buildError(ctx context.Context, err error) error {
	if errors.IsCancelled(err) || ctx.Err() != nil {
		return errors.FromContext(ctx, err)
	}
	if errors.IsKind(err, errors.KindEmbedding) {
		return err
	}
	return errors.EmbeddingError("failed to embed chunks", err)
}

// Query embeds text and returns up to k hits by descending similarity,
// ties broken by chunk index.
func (idx *Index) Query(ctx context.Context, text string, k int, embedder embed.Embedder) ([]Hit, error) {
	if idx == nil || len(idx.entries) == 0 {
		return nil, errors.NotBuiltError("query against an index that was never built")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.ErrCodeEmptyQuestion, "query text is empty", nil)
	}
	if embedder == nil {
		return nil, errors.InternalError("query: embedder is nil", nil)
	}

	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		if errors.IsCancelled(err) {
			return nil, errors.FromContext(ctx, err)
		}
		if errors.IsKind(err, errors.KindEmbedding) {
			return nil, err
		}
		return nil, errors.EmbeddingError("failed to embed query", err)
	}
	return idx.QueryVector(ctx, vec, k)
}

// QueryVector is Query for an already embedded query.
func (idx *Index) QueryVector(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if idx == nil || len(idx.entries) == 0 {
		return nil, errors.NotBuiltError("query against an index that was never built")
	}
	if k <= 0 {
		return nil, errors.ValidationError(fmt.Sprintf("k must be positive, got %d", k), nil)
	}
	if len(vec) != idx.dims {
		return nil, errors.New(errors.ErrCodeEmbedderMismatch, "query embedding does not match the index",
			ErrDimensionMismatch{Expected: idx.dims, Got: len(vec)})
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.CancelledError("query cancelled", err)
	}

	q := make([]float32, len(vec))
	copy(q, vec)
	normalizeVectorInPlace(q)

	want := min(k, len(idx.entries))
	if idx.graph != nil {
		if hits := idx.graphSearch(q, want); len(hits) >= want {
			return hits[:want], nil
		}
		slog.Debug("graph search returned too few nodes, using exact scan", slog.Int("k", want))
	}
	return idx.exactSearch(q, want), nil
}

func (idx *Index) exactSearch(q []float32, k int) []Hit {
	hits := make([]Hit, len(idx.entries))
	for i, e := range idx.entries {
		hits[i] = Hit{Chunk: e.Chunk, Score: dot(q, e.Vector)}
	}
	sortHits(hits)
	return hits[:k]
}

func (idx *Index) graphSearch(q []float32, k int) []Hit {
	keys := idx.graph.search(q, k)
	hits := make([]Hit, 0, len(keys))
	seen := make(map[int]bool, len(keys))
	for _, key := range keys {
		if key < 0 || key >= len(idx.entries) || seen[key] {
			continue
		}
		seen[key] = true
		e := idx.entries[key]
		hits = append(hits, Hit{Chunk: e.Chunk, Score: dot(q, e.Vector)})
	}
	sortHits(hits)
	return hits
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Dimensions returns the embedding dimension.
func (idx *Index) Dimensions() int { return idx.dims }

// Model returns the name of the embedder that built the index.
func (idx *Index) Model() string { return idx.model }

// DocumentID returns the id of the indexed document.
func (idx *Index) DocumentID() string { return idx.documentID }

// CreatedAt returns the build time.
func (idx *Index) CreatedAt() time.Time { return idx.createdAt }

// HasGraph reports whether queries go through the HNSW graph.
func (idx *Index) HasGraph() bool { return idx.graph != nil }

// Chunks returns the indexed chunks in order.
func (idx *Index) Chunks() []chunk.Chunk {
	out := make([]chunk.Chunk, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.Chunk
	}
	return out
}
