package store

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
)

// axisEmbedder maps each text to a one-hot vector chosen by the first
// keyword it contains. Texts without a keyword get the last axis.
type axisEmbedder struct {
	keywords []string
	calls    atomic.Int64
	failOn   string
	dimsFor  func(text string) int
}

func newAxisEmbedder(keywords ...string) *axisEmbedder {
	return &axisEmbedder{keywords: keywords}
}

func (a *axisEmbedder) vector(text string) []float32 {
	dims := len(a.keywords) + 1
	if a.dimsFor != nil {
		dims = a.dimsFor(text)
	}
	v := make([]float32, dims)
	for i, kw := range a.keywords {
		if strings.Contains(strings.ToLower(text), kw) && i < dims {
			v[i] = 1
			return v
		}
	}
	v[dims-1] = 1
	return v
}

func (a *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	a.calls.Add(1)
	if a.failOn != "" && strings.Contains(text, a.failOn) {
		return nil, fmt.Errorf("provider exploded")
	}
	return a.vector(text), nil
}

func (a *axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := a.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (a *axisEmbedder) Dimensions() int                  { return 0 }
func (a *axisEmbedder) ModelName() string                { return "axis-test" }
func (a *axisEmbedder) Available(_ context.Context) bool { return true }
func (a *axisEmbedder) Close() error                     { return nil }

func makeChunks(texts ...string) []chunk.Chunk {
	out := make([]chunk.Chunk, len(texts))
	pos := 0
	for i, t := range texts {
		n := len([]rune(t))
		out[i] = chunk.Chunk{Index: i, DocumentID: "doc-1", Content: t, Start: pos, End: pos + n}
		pos += n
	}
	return out
}

func numberedChunks(n int) []chunk.Chunk {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("section %d discusses topic %d of the annual report", i, i%7)
	}
	return makeChunks(texts...)
}
