package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/embedding/openai"
)

func newGenerator(t *testing.T, model string, handler http.HandlerFunc) *openai.Generator {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gen, err := openai.NewGenerator(openai.Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: model})
	require.NoError(t, err)
	return gen
}

func TestNewGenerator_MissingAPIKey(t *testing.T) {
	gen, err := openai.NewGenerator(openai.Config{})

	require.Error(t, err)
	require.Nil(t, gen)
}

func TestGenerator_Dimension(t *testing.T) {
	tests := []struct {
		model     string
		dimension int
	}{
		{model: "text-embedding-3-small", dimension: 1536},
		{model: "text-embedding-ada-002", dimension: 1536},
		{model: "text-embedding-3-large", dimension: 3072},
		{model: "", dimension: 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			gen, err := openai.NewGenerator(openai.Config{APIKey: "k", Model: tt.model})
			require.NoError(t, err)
			require.Equal(t, tt.dimension, gen.Dimension())
			require.Equal(t, "openai", gen.Name())
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	t.Run("should return the vector and billed tokens", func(t *testing.T) {
		gen := newGenerator(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"object": "list",
				"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
				"model": "text-embedding-3-small",
				"usage": {"prompt_tokens": 8, "total_tokens": 8}
			}`))
		})

		embedding, err := gen.Generate(context.Background(), "ward-12: roads")
		require.NoError(t, err)
		require.Equal(t, []float64{0.1, 0.2, 0.3}, embedding.Vector)
		require.Equal(t, 8, embedding.Tokens)
	})

	t.Run("should reject empty text", func(t *testing.T) {
		gen := newGenerator(t, "", func(http.ResponseWriter, *http.Request) {})

		_, err := gen.Generate(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("should classify upstream failures", func(t *testing.T) {
		gen := newGenerator(t, "", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"input too long","type":"invalid_request_error"}}`))
		})

		_, err := gen.Generate(context.Background(), "text")

		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		require.Equal(t, http.StatusBadRequest, upstreamErr.StatusCode)
		require.False(t, upstreamErr.Retryable)
	})
}
