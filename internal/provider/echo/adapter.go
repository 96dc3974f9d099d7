// Package echo provides a deterministic stand-in for the local fallback
// service. It makes no external calls and is meant for development and tests.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/prompt"
)

const defaultName = "local"

// Option customizes an Adapter.
type Option func(*Adapter)

// WithName registers the adapter under a different service name.
func WithName(name string) Option {
	return func(a *Adapter) {
		a.name = name
	}
}

// WithLatency delays every response, honouring cancellation.
func WithLatency(d time.Duration) Option {
	return func(a *Adapter) {
		a.latency = d
	}
}

// Adapter implements domain.Adapter by echoing the rendered prompt.
type Adapter struct {
	name    string
	latency time.Duration
}

// NewAdapter creates a new echo adapter.
// No configuration is required as it operates entirely in-memory.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{name: defaultName}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute returns a briefing built from the query itself.
func (a *Adapter) Execute(ctx context.Context, q *domain.Query, timeout time.Duration) (*domain.Result, error) {
	if q == nil {
		return nil, errors.New("query cannot be nil")
	}

	started := time.Now()
	callCtx, cancel := provider.WithTimeout(ctx, timeout)
	defer cancel()

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()

		select {
		case <-callCtx.Done():
			return nil, provider.Classify(ctx, a.name, 0, callCtx.Err())
		case <-timer.C:
		}
	}

	input := prompt.User(domain.KindLocal, q)
	content := buildEchoContent(q)

	promptTokens := countTokens(input)
	completionTokens := countTokens(content)

	observability.FromContext(ctx).Debug("echo completed",
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens))

	return provider.Finish(&domain.Result{
		Payload: content,
		Usage: domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		},
	}, a.name, domain.KindLocal, started), nil
}

// Name returns the service identifier.
func (a *Adapter) Name() string {
	return a.name
}

// Kind returns the service variant.
func (a *Adapter) Kind() domain.ServiceKind {
	return domain.KindLocal
}

// buildEchoContent renders a fixed-shape briefing from the query fields.
func buildEchoContent(q *domain.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[summary]: %s, %s to %s\n", q.Scope,
		q.Window.From.Format(time.DateOnly), q.Window.To.Format(time.DateOnly))
	for _, topic := range domain.NormalizeTopics(q.Topics) {
		fmt.Fprintf(&b, "[topic]: %s\n", topic)
	}
	for _, note := range q.Context {
		fmt.Fprintf(&b, "[context]: %s\n", note)
	}
	return b.String()
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
