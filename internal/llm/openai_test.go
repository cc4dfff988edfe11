package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

func TestNewOpenAIGenerator(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{})
	assert.Equal(t, errors.ErrCodeMissingCredentials, errors.GetCode(err))

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", g.ModelName())
	assert.Equal(t, DefaultOpenAIBaseURL, g.config.BaseURL)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	// Given
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Acme Bank. "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()
	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	// When
	answer, err := g.Generate(context.Background(), "the prompt", Options{})

	// Then
	require.NoError(t, err)
	assert.Equal(t, "Acme Bank.", answer)
	got := <-bodies
	assert.Equal(t, "gpt-4", got["model"])
	assert.Contains(t, got, "temperature")
	assert.Equal(t, float64(0), got["temperature"])
	assert.NotContains(t, got, "max_tokens")
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"role": "user", "content": "the prompt"}, msgs[0])
}

func TestOpenAIGenerator_Failures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRequests int64
	}{
		{"no choices", http.StatusOK, `{"choices":[]}`, 2},
		{"error payload", http.StatusOK, `{"error":{"message":"quota","type":"insufficient_quota"}}`, 2},
		{"rate limited", http.StatusTooManyRequests, `{}`, 2},
		{"bad key", http.StatusUnauthorized, `{}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 1, RetryDelay: time.Millisecond})
			require.NoError(t, err)

			_, err = g.Generate(context.Background(), "p", Options{})

			assert.True(t, errors.IsKind(err, errors.KindGeneration), "got %v", err)
			assert.Equal(t, tt.wantRequests, requests.Load())
		})
	}
}
