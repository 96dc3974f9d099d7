package prompt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/prompt"
)

func query() *domain.Query {
	return &domain.Query{
		Scope:  "ward-12",
		Topics: []string{"Water Supply", "roads"},
		Window: domain.TimeWindow{
			From: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		},
		Depth: domain.DepthDeep,
	}
}

func TestUser(t *testing.T) {
	t.Run("should describe an analysis", func(t *testing.T) {
		text := prompt.User(domain.KindReasoning, query())

		require.Contains(t, text, "Prepare an in-depth strategic analysis of ward-12")
		require.Contains(t, text, "between 2026-09-01 and 2026-09-30")
		require.Contains(t, text, "Topics: Water Supply, roads")
		require.NotContains(t, text, "Context gathered so far")
	})

	t.Run("should ask retrieval for recent developments", func(t *testing.T) {
		text := prompt.User(domain.KindRetrieval, query())
		require.Contains(t, text, "Find recent developments in ward-12")
	})

	t.Run("should append question and context", func(t *testing.T) {
		q := query().WithContext("  turnout fell in 2021  ")
		q.Question = "Where should volunteers go first?"

		text := prompt.User(domain.KindLocal, q)
		require.Contains(t, text, "Question: Where should volunteers go first?\n")
		require.Contains(t, text, "Context gathered so far:\n- turnout fell in 2021\n")
	})
}

func TestSystem(t *testing.T) {
	require.Contains(t, prompt.System(domain.KindReasoning), "political strategist")
	require.Contains(t, prompt.System(domain.KindRetrieval), "research assistant")
	require.Contains(t, prompt.System(domain.KindLocal), "reduced-depth")
	require.Equal(t, prompt.System(domain.KindReasoning), prompt.System(domain.KindEmbedding))
}

func TestMaxTokens(t *testing.T) {
	require.Equal(t, int64(512), prompt.MaxTokens(domain.DepthQuick))
	require.Equal(t, int64(1024), prompt.MaxTokens(domain.DepthStandard))
	require.Equal(t, int64(2048), prompt.MaxTokens(domain.DepthDeep))
}

func TestEmbeddingText(t *testing.T) {
	q := query()
	q.Question = "Why?"
	require.Equal(t, "ward-12: "+joinNormalized(q.Topics)+". Why?", prompt.EmbeddingText(q))
}

func joinNormalized(topics []string) string {
	out := ""
	for i, topic := range domain.NormalizeTopics(topics) {
		if i > 0 {
			out += ", "
		}
		out += topic
	}
	return out
}
