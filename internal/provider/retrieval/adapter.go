// Package retrieval provides the real-time search service. It talks to a
// search-grounded model through the OpenAI-compatible chat completions API
// and returns recent developments together with their source citations.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/prompt"
)

// ServiceName identifies the retrieval service in the catalog.
const ServiceName = "retrieval"

const citationsField = "citations"

var errNoChoices = errors.New("no choices in retrieval response")

// Adapter implements domain.Adapter for the retrieval service.
type Adapter struct {
	client openai.Client
	model  string
}

// NewAdapter creates a new retrieval adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("retrieval API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "sonar"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Execute searches for recent developments matching the query.
func (a *Adapter) Execute(ctx context.Context, q *domain.Query, timeout time.Duration) (*domain.Result, error) {
	if q == nil {
		return nil, errors.New("query cannot be nil")
	}

	started := time.Now()
	callCtx, cancel := provider.WithTimeout(ctx, timeout)
	defer cancel()

	logger := observability.FromContext(ctx)
	logger.Debug("calling retrieval model", zap.String("model", a.model))

	resp, err := a.client.Chat.Completions.New(callCtx, a.toSDKParams(q))
	if err != nil {
		return nil, provider.Classify(ctx, ServiceName, statusCode(err), err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewUpstreamError(ServiceName, http.StatusBadGateway, errNoChoices)
	}

	sources := citations(resp)
	logger.Debug("retrieval model responded",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("sources", len(sources)))

	return provider.Finish(&domain.Result{
		Payload: resp.Choices[0].Message.Content,
		Sources: sources,
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, ServiceName, domain.KindRetrieval, started), nil
}

// Name returns the service identifier.
func (a *Adapter) Name() string {
	return ServiceName
}

// Kind returns the service variant.
func (a *Adapter) Kind() domain.ServiceKind {
	return domain.KindRetrieval
}

// toSDKParams converts a query to SDK ChatCompletionNewParams.
func (a *Adapter) toSDKParams(q *domain.Query) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System(domain.KindRetrieval)),
			openai.UserMessage(prompt.User(domain.KindRetrieval, q)),
		},
		MaxTokens:   openai.Int(prompt.MaxTokens(q.Depth)),
		Temperature: openai.Float(0.2),
	}
}

// citations reads the non-standard citations array some search-grounded
// backends attach to the completion.
func citations(resp *openai.ChatCompletion) []string {
	field, ok := resp.JSON.ExtraFields[citationsField]
	if !ok || !field.Valid() {
		return nil
	}

	var sources []string
	if err := json.Unmarshal([]byte(field.Raw()), &sources); err != nil {
		return nil
	}
	return sources
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
