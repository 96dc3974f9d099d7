// Package prompt shapes analysis queries into upstream prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

const dateLayout = "2006-01-02"

const (
	reasoningSystem = `You are a political strategist preparing a briefing for a campaign team.
Ground every claim in the supplied context. Structure the answer as:
1. Situation summary
2. Key issues and sentiment by topic
3. Opposition activity
4. Recommended actions, ordered by urgency
Flag any claim you cannot support with evidence as an assumption.`

	retrievalSystem = `You are a research assistant collecting recent, verifiable developments.
Report facts only, with dates and sources. Prefer local news, official
statements and public records. Do not speculate.`

	localSystem = `You are a concise political analyst. Give a short situation summary
and three recommended actions. State clearly that this is a reduced-depth
briefing.`
)

// System returns the system prompt for a service kind.
func System(kind domain.ServiceKind) string {
	switch kind {
	case domain.KindRetrieval:
		return retrievalSystem
	case domain.KindLocal:
		return localSystem
	default:
		return reasoningSystem
	}
}

// User renders the query as the user message for kind.
func User(kind domain.ServiceKind, q *domain.Query) string {
	var b strings.Builder

	if kind == domain.KindRetrieval {
		fmt.Fprintf(&b, "Find recent developments in %s", q.Scope)
	} else {
		fmt.Fprintf(&b, "Prepare %s strategic analysis of %s", depthLabel(q.Depth), q.Scope)
	}
	fmt.Fprintf(&b, " between %s and %s.\n", q.Window.From.Format(dateLayout), q.Window.To.Format(dateLayout))
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(q.Topics, ", "))

	if q.Question != "" {
		fmt.Fprintf(&b, "Question: %s\n", q.Question)
	}

	if len(q.Context) > 0 {
		b.WriteString("\nContext gathered so far:\n")
		for _, note := range q.Context {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(note))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// EmbeddingText is the text embedded for analysis memory lookups.
func EmbeddingText(q *domain.Query) string {
	text := q.Scope + ": " + strings.Join(domain.NormalizeTopics(q.Topics), ", ")
	if q.Question != "" {
		text += ". " + q.Question
	}
	return text
}

// MaxTokens caps the completion length by analysis depth.
func MaxTokens(depth domain.Depth) int64 {
	switch depth {
	case domain.DepthQuick:
		return 512
	case domain.DepthDeep:
		return 2048
	default:
		return 1024
	}
}

func depthLabel(depth domain.Depth) string {
	switch depth {
	case domain.DepthQuick:
		return "a brief"
	case domain.DepthDeep:
		return "an in-depth"
	default:
		return "a standard"
	}
}
