// Package local provides the zero-cost fallback service running on a
// locally hosted model.
package local

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/prompt"
)

// ServiceName identifies the local fallback service in the catalog.
const ServiceName = "local"

var errNoChoices = errors.New("no choices in local model response")

// Adapter implements domain.Adapter for an OpenAI-compatible local server.
type Adapter struct {
	client *openai.Client
	model  string
}

// NewAdapter creates a new local adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("local model base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("local model name is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Adapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// Execute produces a reduced-depth briefing.
func (a *Adapter) Execute(ctx context.Context, q *domain.Query, timeout time.Duration) (*domain.Result, error) {
	if q == nil {
		return nil, errors.New("query cannot be nil")
	}

	started := time.Now()
	callCtx, cancel := provider.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System(domain.KindLocal)},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User(domain.KindLocal, q)},
		},
		MaxTokens:   int(prompt.MaxTokens(domain.DepthQuick)),
		Temperature: 0.3,
	})
	if err != nil {
		return nil, provider.Classify(ctx, ServiceName, statusCode(err), err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewUpstreamError(ServiceName, http.StatusBadGateway, errNoChoices)
	}

	observability.FromContext(ctx).Debug("local model responded",
		zap.String("model", a.model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return provider.Finish(&domain.Result{
		Payload: resp.Choices[0].Message.Content,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, ServiceName, domain.KindLocal, started), nil
}

// Name returns the service identifier.
func (a *Adapter) Name() string {
	return ServiceName
}

// Kind returns the service variant.
func (a *Adapter) Kind() domain.ServiceKind {
	return domain.KindLocal
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
