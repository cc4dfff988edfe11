// Package store holds the vector index: embedding chunks into an
// immutable Index, querying it by cosine similarity, and persisting it to
// a directory.
package store

import (
	"fmt"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
)

const (
	// FormatVersion is written to the meta table and checked on Load.
	FormatVersion = 1

	// DefaultExactThreshold is the largest index queried by exact scan.
	DefaultExactThreshold = 2048

	// DefaultM is the HNSW neighbour count.
	DefaultM = 16

	// DefaultEfSearch is the HNSW search breadth.
	DefaultEfSearch = 64

	// DefaultWorkers bounds concurrent embedding batches during Build.
	DefaultWorkers = 4

	// DefaultBatchSize is the number of chunks per embedding request.
	DefaultBatchSize = 32
)

// Files inside a persistence directory.
const (
	GraphFile  = "vectors.hnsw"
	ChunksFile = "chunks.db"
	LockFile   = ".pdfrag.lock"
)

// Entry pairs a chunk with its unit-length embedding.
type Entry struct {
	Chunk  chunk.Chunk
	Vector []float32
}

// Hit is a query result. Score is the cosine similarity in [-1, 1].
type Hit struct {
	Chunk chunk.Chunk
	Score float32
}

// BuildOptions configures Build.
type BuildOptions struct {
	// BatchSize is the number of chunks per EmbedBatch call.
	BatchSize int

	// Workers bounds concurrent batches.
	Workers int

	// ExactThreshold is the largest entry count answered by exact scan.
	// Larger indexes get an HNSW graph.
	ExactThreshold int

	M        int
	EfSearch int

	// Progress, when set, is called after each batch with the number of
	// chunks embedded so far. Calls are serialized.
	Progress func(done, total int)
}

// DefaultBuildOptions returns the defaults.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		BatchSize:      DefaultBatchSize,
		Workers:        DefaultWorkers,
		ExactThreshold: DefaultExactThreshold,
		M:              DefaultM,
		EfSearch:       DefaultEfSearch,
	}
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.ExactThreshold <= 0 {
		o.ExactThreshold = DefaultExactThreshold
	}
	if o.M <= 0 {
		o.M = DefaultM
	}
	if o.EfSearch <= 0 {
		o.EfSearch = DefaultEfSearch
	}
	return o
}

// Info describes a persisted index without loading its vectors.
type Info struct {
	Dir           string `json:"dir"`
	FormatVersion int    `json:"format_version"`
	Dimensions    int    `json:"dimensions"`
	Model         string `json:"model"`
	DocumentID    string `json:"document_id"`
	CreatedAt     string `json:"created_at"`
	Chunks        int    `json:"chunks"`
	HasGraph      bool   `json:"has_graph"`
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
