package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/breaker"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/stream"
)

const (
	callerHeader    = "X-Caller-Id"
	lastEventHeader = "Last-Event-ID"
	anonymousCaller = "anonymous"
	maxBodyBytes    = 1 << 20
	heartbeat       = 15 * time.Second
)

// Analyzer runs analyses in the background.
type Analyzer interface {
	Start(ctx context.Context, requestID string, q *domain.Query, caller string) error
	Cancel(requestID string) bool
}

// Streams hands out subscriptions to request event streams.
type Streams interface {
	Subscribe(requestID string, afterSeq uint64) (*stream.Subscription, error)
}

// Budget reports the spend of the current period.
type Budget interface {
	Summary(ctx context.Context) domain.UsageSummary
	Remediation(ctx context.Context) domain.Remediation
}

// Breakers reports per-service circuit breaker state.
type Breakers interface {
	Snapshots() []breaker.Snapshot
}

// BudgetReport is the body of GET /v1/budget.
type BudgetReport struct {
	Summary     domain.UsageSummary `json:"summary"`
	Remediation domain.Remediation  `json:"remediation"`
	Breakers    []breaker.Snapshot  `json:"breakers"`
}

// Accepted is the body returned for asynchronous submissions.
type Accepted struct {
	RequestID string `json:"request_id"`
	EventsURL string `json:"events_url"`
}

// Handler handles HTTP requests.
type Handler struct {
	analyzer Analyzer
	streams  Streams
	budget   Budget
	breakers Breakers
	metrics  http.Handler
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	analyzer Analyzer,
	streams Streams,
	budget Budget,
	breakers Breakers,
	gatherer prometheus.Gatherer,
) *Handler {
	return &Handler{
		analyzer: analyzer,
		streams:  streams,
		budget:   budget,
		breakers: breakers,
		metrics:  promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// HandleSubmit starts an analysis. The response is the analysis event
// stream unless ?async=true, in which case the request id is returned with
// 202 and the client attaches via HandleEvents. A client that disconnects
// from the stream does not cancel the analysis.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var q domain.Query
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := r.Header.Get(callerHeader)
	if caller == "" {
		caller = anonymousCaller
	}
	ctx = observability.WithCaller(ctx, caller)

	requestID := observability.GetRequestID(ctx)
	if requestID == "" {
		requestID = observability.GenerateRequestID()
		ctx = observability.WithRequestID(ctx, requestID)
	}

	logger := observability.FromContext(ctx)
	logger.Info("analysis request received",
		zap.String("scope", q.Scope),
		zap.Strings("topics", q.Topics),
		zap.String("depth", string(q.Depth)),
		zap.Bool("critical", q.Critical),
	)

	if err := h.analyzer.Start(ctx, requestID, &q, caller); err != nil {
		logger.Warn("analysis not started", zap.Error(err))
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		writeJSON(w, http.StatusAccepted, Accepted{
			RequestID: requestID,
			EventsURL: "/v1/analyses/" + requestID + "/events",
		})
		return
	}

	h.stream(ctx, w, requestID, 0)
}

// HandleEvents attaches to the event stream of an analysis, replaying
// buffered events after Last-Event-ID (or ?after).
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	after := r.Header.Get(lastEventHeader)
	if after == "" {
		after = r.URL.Query().Get("after")
	}

	var afterSeq uint64
	if after != "" {
		seq, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid event id %q", after))
			return
		}
		afterSeq = seq
	}

	ctx := observability.WithRequestID(r.Context(), requestID)
	h.stream(ctx, w, requestID, afterSeq)
}

// HandleCancel stops a running analysis.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	if !h.analyzer.Cancel(requestID) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("analysis %s is not running", requestID))
		return
	}

	observability.FromContext(observability.WithRequestID(r.Context(), requestID)).
		Info("analysis cancel requested")
	w.WriteHeader(http.StatusAccepted)
}

// HandleBudget reports the spend summary, the active remediation and the
// state of every circuit breaker.
func (h *Handler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	writeJSON(w, http.StatusOK, BudgetReport{
		Summary:     h.budget.Summary(ctx),
		Remediation: h.budget.Remediation(ctx),
		Breakers:    h.breakers.Snapshots(),
	})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// HandleMetrics serves the Prometheus scrape endpoint.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, requestID string, afterSeq uint64) {
	logger := observability.FromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := h.streams.Subscribe(requestID, afterSeq)
	if errors.Is(err, domain.ErrUnknownRequest) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error("subscribe failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if sub.Truncated() {
		w.Header().Set("X-Stream-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stream client disconnected")
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, open := <-sub.C:
			if !open {
				if sub.Dropped() {
					logger.Warn("stream subscriber fell behind")
				}
				return
			}
			if err := writeEvent(w, event); err != nil {
				logger.Warn("stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()

			if event.Terminal() {
				logger.Info("stream completed", zap.Uint64("seq", event.Seq))
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Seq, event.Type, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Status is already written; nothing left to report on failure.
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
