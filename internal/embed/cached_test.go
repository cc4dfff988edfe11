package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_EmbedHitsCache(t *testing.T) {
	// Given
	mock := newMockEmbedder(8)
	cached := NewCachedEmbedder(mock, 10)

	// When: the same question is embedded twice
	a, err := cached.Embed(context.Background(), "what is the date?")
	require.NoError(t, err)
	b, err := cached.Embed(context.Background(), "what is the date?")
	require.NoError(t, err)

	// Then: the provider is called once
	assert.Equal(t, a, b)
	assert.Equal(t, int64(1), mock.embedCalls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_BatchOnlySendsMisses(t *testing.T) {
	mock := newMockEmbedder(4)
	cached := NewCachedEmbedder(mock, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "b")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []int{2}, mock.batchSizes)

	// Everything is cached now.
	_, err = cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mock.batchCalls.Load())
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	mock := newMockEmbedder(4)
	cached := NewCachedEmbedder(mock, 2)
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		_, err := cached.Embed(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Len())

	_, err := cached.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, int64(4), mock.embedCalls.Load())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	mock := newMockEmbedder(16)
	cached := NewCachedEmbedder(mock, 0)

	assert.Equal(t, 16, cached.Dimensions())
	assert.Equal(t, "mock-model", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, mock, cached.Inner())
	assert.NoError(t, cached.Close())
}
