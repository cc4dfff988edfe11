package embed

import (
	"context"
	"math"
	"sync/atomic"
)

// mockEmbedder counts calls and returns a fixed vector.
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchSizes []int
	dims       int
	vector     []float32
}

func newMockEmbedder(dims int) *mockEmbedder {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i+1) * 0.001
	}
	return &mockEmbedder{dims: dims, vector: vec}
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchSizes = append(m.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                  { return m.dims }
func (m *mockEmbedder) ModelName() string                { return "mock-model" }
func (m *mockEmbedder) Available(_ context.Context) bool { return true }
func (m *mockEmbedder) Close() error                     { return nil }

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, ma, mb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		ma += float64(a[i]) * float64(a[i])
		mb += float64(b[i]) * float64(b[i])
	}
	if ma == 0 || mb == 0 {
		return 0
	}
	return dot / (math.Sqrt(ma) * math.Sqrt(mb))
}
