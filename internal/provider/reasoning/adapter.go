// Package reasoning provides the high-capability analysis service backed by
// the Anthropic Messages API.
package reasoning

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/prompt"
)

// ServiceName identifies the reasoning service in the catalog.
const ServiceName = "reasoning"

var errEmptyResponse = errors.New("empty response from reasoning model")

// Adapter implements domain.Adapter for Anthropic.
type Adapter struct {
	client anthropic.Client
	model  string
}

// NewAdapter creates a new reasoning adapter. Retries are left to the
// dispatcher, so the SDK's own retry loop is disabled.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Execute asks the model for a strategic analysis of the query.
func (a *Adapter) Execute(ctx context.Context, q *domain.Query, timeout time.Duration) (*domain.Result, error) {
	if q == nil {
		return nil, errors.New("query cannot be nil")
	}

	started := time.Now()
	callCtx, cancel := provider.WithTimeout(ctx, timeout)
	defer cancel()

	logger := observability.FromContext(ctx)
	logger.Debug("calling reasoning model", zap.String("model", a.model))

	message, err := a.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: prompt.MaxTokens(q.Depth),
		System: []anthropic.TextBlockParam{
			{Text: prompt.System(domain.KindReasoning)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User(domain.KindReasoning, q))),
		},
	})
	if err != nil {
		return nil, provider.Classify(ctx, ServiceName, statusCode(err), err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if content, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return nil, domain.NewUpstreamError(ServiceName, http.StatusBadGateway, errEmptyResponse)
	}

	logger.Debug("reasoning model responded",
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens),
		zap.String("stop_reason", string(message.StopReason)))

	return provider.Finish(&domain.Result{
		Payload: text.String(),
		Usage: domain.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
		},
	}, ServiceName, domain.KindReasoning, started), nil
}

// Name returns the service identifier.
func (a *Adapter) Name() string {
	return ServiceName
}

// Kind returns the service variant.
func (a *Adapter) Kind() domain.ServiceKind {
	return domain.KindReasoning
}

func statusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
