package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

const (
	RequestIDHeader = "X-Request-Id"
	TraceIDHeader   = "X-Trace-Id"

	maxRequestIDLength = 64
)

// Trace injects trace, span and request IDs into every request. A client
// supplied X-Request-Id is kept so retries map onto the same analysis.
func Trace() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			traceID := observability.GenerateTraceID()
			ctx = observability.WithTraceID(ctx, traceID)
			ctx = observability.WithSpanID(ctx, observability.GenerateSpanID())

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = observability.GenerateRequestID()
			}
			ctx = observability.WithRequestID(ctx, requestID)

			w.Header().Set(TraceIDHeader, traceID)
			w.Header().Set(RequestIDHeader, requestID)

			observability.FromContext(ctx).Info("request started",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
