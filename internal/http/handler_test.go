package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/breaker"
	"github.com/ashish-admin/stra-tech-sub002/internal/config"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	httpapi "github.com/ashish-admin/stra-tech-sub002/internal/http"
	"github.com/ashish-admin/stra-tech-sub002/internal/http/middleware"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/memory"
	"github.com/ashish-admin/stra-tech-sub002/internal/stream"
)

// scriptedAnalyzer publishes a fixed event sequence for every started request.
type scriptedAnalyzer struct {
	hub     *stream.Hub
	release chan struct{}
	once    sync.Once

	mu        sync.Mutex
	started   map[string]string
	cancelled []string
}

func newScriptedAnalyzer(hub *stream.Hub) *scriptedAnalyzer {
	return &scriptedAnalyzer{
		hub:     hub,
		release: make(chan struct{}),
		started: make(map[string]string),
	}
}

func (a *scriptedAnalyzer) Start(_ context.Context, requestID string, _ *domain.Query, caller string) error {
	if err := a.hub.Open(requestID); err != nil {
		return err
	}

	a.mu.Lock()
	a.started[requestID] = caller
	a.mu.Unlock()

	go func() {
		_, _ = a.hub.Publish(requestID, domain.Event{Type: domain.EventPhaseStarted, Phase: "cache-check"})
		_, _ = a.hub.Publish(requestID, domain.Event{Type: domain.EventPhaseProgress, Phase: "cache-check", Percent: 5})
		<-a.release
		_, _ = a.hub.Publish(requestID, domain.Event{
			Type:   domain.EventFinalResult,
			State:  "complete",
			Result: &domain.Result{Status: domain.StatusSuccess, Service: "reasoning", Confidence: 0.95},
		})
	}()
	return nil
}

func (a *scriptedAnalyzer) Cancel(requestID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.started[requestID]; !ok {
		return false
	}
	a.cancelled = append(a.cancelled, requestID)
	return true
}

func (a *scriptedAnalyzer) finish() {
	a.once.Do(func() { close(a.release) })
}

func (a *scriptedAnalyzer) caller(requestID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started[requestID]
}

type sseEvent struct {
	id    string
	kind  string
	event domain.Event
}

func readEvents(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			current.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			current.kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.event))
		case line == "" && current.id != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

type fixture struct {
	server   *httptest.Server
	hub      *stream.Hub
	analyzer *scriptedAnalyzer
	bank     *breaker.Bank
	ledger   *ledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	hub := stream.NewHub(stream.DefaultConfig(), metrics)
	analyzer := newScriptedAnalyzer(hub)
	t.Cleanup(analyzer.finish)
	bank := breaker.NewBank(breaker.Config{Threshold: 1, Cooldown: time.Minute, MaxCooldown: time.Hour}, metrics)

	catalog, err := domain.NewInMemoryCatalog(domain.ServiceDescriptor{
		Name:    "reasoning",
		Kind:    domain.KindReasoning,
		Cost:    domain.CostModel{InputPer1K: 0.003, OutputPer1K: 0.015},
		Timeout: time.Second,
	})
	require.NoError(t, err)

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.MonthlyLimit = 10
	l := ledger.NewLedger(ledgerCfg, memory.NewStore(), catalog, domain.NewStandardCostCalculator(), metrics)

	handler := httpapi.NewHandler(analyzer, hub, l, bank, reg)
	server := httpapi.NewServer(&config.ServerConfig{Port: 8080, ReadTimeout: 30}, handler, middleware.BuildMiddlewareChain(nil))

	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)

	return &fixture{server: ts, hub: hub, analyzer: analyzer, bank: bank, ledger: l}
}

const queryBody = `{"scope":"ward-12","topics":["water supply","metro fares"],"depth":"standard"}`

func TestHandleSubmit(t *testing.T) {
	t.Run("should stream events until the final result", func(t *testing.T) {
		f := newFixture(t)
		f.analyzer.finish()

		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/v1/analyses", strings.NewReader(queryBody))
		require.NoError(t, err)
		req.Header.Set("X-Caller-Id", "campaign-desk")
		req.Header.Set("X-Request-Id", "req-42")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		require.Equal(t, "req-42", resp.Header.Get("X-Request-Id"))

		events := readEvents(t, resp.Body)
		require.Len(t, events, 3)
		require.Equal(t, []string{"1", "2", "3"}, []string{events[0].id, events[1].id, events[2].id})
		require.Equal(t, "phase-started", events[0].kind)
		require.Equal(t, "final-result", events[2].kind)
		require.Equal(t, "req-42", events[2].event.RequestID)
		require.InDelta(t, 0.95, events[2].event.Result.Confidence, 1e-9)
		require.Equal(t, "campaign-desk", f.analyzer.caller("req-42"))
	})

	t.Run("should return request id when async", func(t *testing.T) {
		f := newFixture(t)

		resp, err := http.Post(f.server.URL+"/v1/analyses?async=true", "application/json", strings.NewReader(queryBody))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var accepted httpapi.Accepted
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
		require.Equal(t, resp.Header.Get("X-Request-Id"), accepted.RequestID)
		require.Equal(t, "/v1/analyses/"+accepted.RequestID+"/events", accepted.EventsURL)
		require.Equal(t, "anonymous", f.analyzer.caller(accepted.RequestID))
	})

	t.Run("should reject invalid queries", func(t *testing.T) {
		f := newFixture(t)

		for _, body := range []string{`{"scope":`, `{"scope":"ward-12","topics":[]}`, `{"topics":["x"]}`} {
			resp, err := http.Post(f.server.URL+"/v1/analyses", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		}
	})

	t.Run("should reject duplicate request ids", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.hub.Open("req-dup"))

		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/v1/analyses", strings.NewReader(queryBody))
		require.NoError(t, err)
		req.Header.Set("X-Request-Id", "req-dup")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestHandleEvents(t *testing.T) {
	submit := func(t *testing.T, f *fixture) string {
		t.Helper()
		resp, err := http.Post(f.server.URL+"/v1/analyses?async=true", "application/json", strings.NewReader(queryBody))
		require.NoError(t, err)
		defer resp.Body.Close()

		var accepted httpapi.Accepted
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
		return accepted.RequestID
	}

	t.Run("should resume after Last-Event-ID", func(t *testing.T) {
		f := newFixture(t)
		id := submit(t, f)
		f.analyzer.finish()

		require.Eventually(t, func() bool {
			last, _ := f.hub.Last(id)
			return last == 3
		}, time.Second, 5*time.Millisecond)

		req, err := http.NewRequest(http.MethodGet, f.server.URL+"/v1/analyses/"+id+"/events", nil)
		require.NoError(t, err)
		req.Header.Set("Last-Event-ID", "1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		events := readEvents(t, resp.Body)
		require.Len(t, events, 2)
		require.Equal(t, "2", events[0].id)
		require.Equal(t, "final-result", events[1].kind)
	})

	t.Run("should accept after query parameter", func(t *testing.T) {
		f := newFixture(t)
		id := submit(t, f)
		f.analyzer.finish()

		resp, err := http.Get(f.server.URL + "/v1/analyses/" + id + "/events?after=2")
		require.NoError(t, err)
		defer resp.Body.Close()

		events := readEvents(t, resp.Body)
		require.Len(t, events, 1)
		require.Equal(t, "3", events[0].id)
	})

	t.Run("should not cancel the analysis when the client leaves", func(t *testing.T) {
		f := newFixture(t)
		id := submit(t, f)

		ctx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/v1/analyses/"+id+"/events", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		cancel()
		resp.Body.Close()

		f.analyzer.finish()
		require.Eventually(t, func() bool {
			last, _ := f.hub.Last(id)
			return last == 3
		}, time.Second, 5*time.Millisecond)
		require.Empty(t, f.analyzer.cancelled)
	})

	t.Run("should return 404 for unknown analyses", func(t *testing.T) {
		f := newFixture(t)

		resp, err := http.Get(f.server.URL + "/v1/analyses/nope/events")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("should reject malformed event ids", func(t *testing.T) {
		f := newFixture(t)

		req, err := http.NewRequest(http.MethodGet, f.server.URL+"/v1/analyses/x/events", nil)
		require.NoError(t, err)
		req.Header.Set("Last-Event-ID", "abc")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleCancel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.analyzer.Start(context.Background(), "req-7", nil, "desk"))

	cancelReq := func(id string) int {
		req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/v1/analyses/"+id, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusAccepted, cancelReq("req-7"))
	require.Equal(t, http.StatusNotFound, cancelReq("req-8"))
	require.Equal(t, []string{"req-7"}, f.analyzer.cancelled)
}

func TestHandleBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.RecordUsage(ctx, "reasoning", "analyze", 1000, 8.5))
	permit, ok := f.bank.Admit(ctx, "reasoning")
	require.True(t, ok)
	f.bank.RecordResult(ctx, permit, false)

	resp, err := http.Get(f.server.URL + "/v1/budget")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Summary struct {
			TotalSpend  float64 `json:"total_spend"`
			Utilization float64 `json:"utilization"`
		} `json:"summary"`
		Remediation struct {
			Threshold     string `json:"threshold"`
			CheapestFirst bool   `json:"cheapest_first"`
		} `json:"remediation"`
		Breakers []struct {
			Service string `json:"service"`
			State   string `json:"state"`
		} `json:"breakers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))

	assert.InDelta(t, 8.5, report.Summary.TotalSpend, 1e-9)
	assert.InDelta(t, 0.85, report.Summary.Utilization, 1e-9)
	assert.Equal(t, "warning", report.Remediation.Threshold)
	require.Len(t, report.Breakers, 1)
	assert.Equal(t, "reasoning", report.Breakers[0].Service)
	assert.Equal(t, "open", report.Breakers[0].State)
}

func TestHandleHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	require.Equal(t, "healthy", health["status"])

	permit, ok := f.bank.Admit(context.Background(), "reasoning")
	require.True(t, ok)
	f.bank.RecordResult(context.Background(), permit, false)

	resp, err = http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "strategist_breaker_trips_total")
}

func TestServerShutdownBeforeStart(t *testing.T) {
	server := httpapi.NewServer(&config.ServerConfig{Port: 8080, ReadTimeout: 30}, nil, middleware.Chain())
	require.NoError(t, server.Shutdown(context.Background()))
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	handler := middleware.Trace()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	t.Run("should keep client request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-Id", "client-1")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.Equal(t, "client-1", seen)
		require.Equal(t, "client-1", w.Header().Get("X-Request-Id"))
		require.NotEmpty(t, w.Header().Get("X-Trace-Id"))
	})

	t.Run("should generate request id when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.NotEmpty(t, seen)
		require.Equal(t, seen, w.Header().Get("X-Request-Id"))
	})
}
