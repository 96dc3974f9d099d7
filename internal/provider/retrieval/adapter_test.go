package retrieval_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/retrieval"
)

func query() *domain.Query {
	return &domain.Query{
		Scope:  "ward-12",
		Topics: []string{"roads"},
		Window: domain.TimeWindow{
			From: time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, time.October, 8, 0, 0, 0, 0, time.UTC),
		},
		Depth: domain.DepthQuick,
	}
}

func newAdapter(t *testing.T, handler http.HandlerFunc) *retrieval.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := retrieval.NewAdapter(retrieval.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
		Model:   "sonar",
	})
	require.NoError(t, err)
	return adapter
}

func TestNewAdapter_Success(t *testing.T) {
	adapter, err := retrieval.NewAdapter(retrieval.Config{APIKey: "test-key"})

	require.NoError(t, err)
	require.NotNil(t, adapter)
	require.Equal(t, "retrieval", adapter.Name())
	require.Equal(t, domain.KindRetrieval, adapter.Kind())
}

func TestNewAdapter_MissingAPIKey(t *testing.T) {
	adapter, err := retrieval.NewAdapter(retrieval.Config{})

	require.Error(t, err)
	require.Nil(t, adapter)
	require.Contains(t, err.Error(), "API key is required")
}

func TestAdapter_Execute(t *testing.T) {
	t.Run("should return developments with citations", func(t *testing.T) {
		var body map[string]any
		adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "c1",
				"object": "chat.completion",
				"created": 1728000000,
				"model": "sonar",
				"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Road repairs announced on Oct 3."}}],
				"usage": {"prompt_tokens": 50, "completion_tokens": 200, "total_tokens": 250},
				"citations": ["https://news.example/roads", "https://gov.example/notice"]
			}`))
		})

		result, err := adapter.Execute(context.Background(), query(), 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSuccess, result.Status)
		require.Equal(t, "Road repairs announced on Oct 3.", result.Payload)
		require.Equal(t, []string{"https://news.example/roads", "https://gov.example/notice"}, result.Sources)
		require.Equal(t, 50, result.Usage.PromptTokens)
		require.Equal(t, 200, result.Usage.CompletionTokens)
		require.Equal(t, 250, result.Usage.TotalTokens)

		require.Equal(t, "sonar", body["model"])
		messages, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 2)
	})

	t.Run("should tolerate a response without citations", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"sonar",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Quiet week."}}],
				"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		})

		result, err := adapter.Execute(context.Background(), query(), 5*time.Second)
		require.NoError(t, err)
		require.Empty(t, result.Sources)
	})

	t.Run("should classify server errors as retryable", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
		})

		_, err := adapter.Execute(context.Background(), query(), 5*time.Second)

		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		require.Equal(t, http.StatusServiceUnavailable, upstreamErr.StatusCode)
		require.True(t, upstreamErr.Retryable)
	})

	t.Run("should report empty choices as an upstream error", func(t *testing.T) {
		adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"sonar","choices":[]}`))
		})

		_, err := adapter.Execute(context.Background(), query(), 5*time.Second)

		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
	})

	t.Run("should time out instead of hanging", func(t *testing.T) {
		adapter := newAdapter(t, func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		_, err := adapter.Execute(context.Background(), query(), 50*time.Millisecond)
		require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	})

	t.Run("should reject nil query", func(t *testing.T) {
		adapter := newAdapter(t, func(http.ResponseWriter, *http.Request) {})

		resp, err := adapter.Execute(context.Background(), nil, time.Second)
		require.Error(t, err)
		require.Nil(t, resp)
		require.Contains(t, err.Error(), "query cannot be nil")
	})
}
