package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

type fakeSearcher struct {
	hits  []store.Hit
	err   error
	gotK  int
	gotQ  string
	calls int
}

func (f *fakeSearcher) Query(_ context.Context, text string, k int, _ embed.Embedder) ([]store.Hit, error) {
	f.calls++
	f.gotK, f.gotQ = k, text
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[:min(k, len(f.hits))], nil
}

func hit(i int, score float32) store.Hit {
	return store.Hit{Chunk: chunk.Chunk{Index: i, Content: "chunk"}, Score: score}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		k        int
		minScore float32
		wantErr  bool
	}{
		{"default", DefaultK, 0, false},
		{"min score", 2, 0.5, false},
		{"zero k", 0, 0, true},
		{"negative k", -1, 0, true},
		{"min score too high", 4, 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.k, tt.minScore)
			if tt.wantErr {
				assert.True(t, errors.IsKind(err, errors.KindConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.k, r.K)
		})
	}
}

func TestRetrieve_RanksAndLimits(t *testing.T) {
	// Given
	s := &fakeSearcher{hits: []store.Hit{hit(3, 0.9), hit(1, 0.7), hit(0, 0.5), hit(2, 0.1), hit(4, 0.05)}}
	r, err := New(DefaultK, 0)
	require.NoError(t, err)

	// When
	results, err := r.Retrieve(context.Background(), s, nil, "question")

	// Then
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 4, s.gotK)
	assert.Equal(t, "question", s.gotQ)
	for i, res := range results {
		assert.Equal(t, i+1, res.Rank)
	}
	assert.Equal(t, 3, results[0].Chunk.Index)
}

func TestRetrieve_MinScore(t *testing.T) {
	s := &fakeSearcher{hits: []store.Hit{hit(0, 0.9), hit(1, 0.4), hit(2, 0.35)}}
	r, err := New(3, 0.4)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), s, nil, "q")

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []int{1, 2}, []int{results[0].Rank, results[1].Rank})
}

func TestRetrieve_PropagatesErrors(t *testing.T) {
	s := &fakeSearcher{err: errors.NotBuiltError("not built")}
	r, _ := New(DefaultK, 0)

	_, err := r.Retrieve(context.Background(), s, nil, "q")
	assert.True(t, errors.IsKind(err, errors.KindNotBuilt))

	_, err = r.Retrieve(context.Background(), nil, nil, "q")
	assert.True(t, errors.IsKind(err, errors.KindNotBuilt))

	bad := &Retriever{K: 0}
	_, err = bad.Retrieve(context.Background(), s, nil, "q")
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestRetrieve_AgainstRealIndex(t *testing.T) {
	// Given: fewer chunks than k
	e := embed.NewStaticEmbedder()
	chunks := []chunk.Chunk{
		{Index: 0, DocumentID: "d", Content: "The report was issued by Acme Bank."},
		{Index: 1, DocumentID: "d", Content: "Photosynthesis converts light."},
	}
	idx, err := store.Build(context.Background(), chunks, e, store.DefaultBuildOptions())
	require.NoError(t, err)
	r, _ := New(DefaultK, 0)

	// When
	results, err := r.Retrieve(context.Background(), idx, e, "Which bank issued the report?")

	// Then
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, []string{chunks[0].Content, chunks[1].Content}, Contents(results))
}
