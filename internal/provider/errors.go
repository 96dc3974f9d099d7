// Package provider holds helpers shared by the upstream adapters.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// WithTimeout bounds a single upstream call. A non-positive timeout leaves
// the parent deadline in place.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Classify maps a failed call onto the domain taxonomy. parent is the
// context the caller passed in, before the per-call timeout was applied:
// when it is done the caller's own cancellation is returned unchanged.
func Classify(parent context.Context, service string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	if parentErr := parent.Err(); parentErr != nil {
		return fmt.Errorf("%s call aborted: %w", service, parentErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", service, domain.ErrUpstreamTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s call aborted: %w", service, err)
	}
	return domain.NewUpstreamError(service, statusCode, err)
}

// Finish completes a result with the fields every adapter sets the same way.
func Finish(result *domain.Result, service string, kind domain.ServiceKind, started time.Time) *domain.Result {
	result.Status = domain.StatusSuccess
	result.Service = service
	result.Kind = kind
	result.Elapsed = time.Since(started)
	if result.Usage.TotalTokens == 0 {
		result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
	}
	return result
}
