package domain

import (
	"time"
)

// Depth is the analysis depth requested by the caller.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

const defaultWindowDays = 7

// TimeWindow bounds the period an analysis covers.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Days returns the window length in days.
func (w TimeWindow) Days() float64 {
	if w.To.Before(w.From) {
		return 0
	}
	return w.To.Sub(w.From).Hours() / 24
}

// Query represents a strategic analysis request.
type Query struct {
	Scope        string     `json:"scope"                   validate:"required,max=128"`
	Topics       []string   `json:"topics"                  validate:"required,min=1,max=32,dive,required,max=64"`
	Window       TimeWindow `json:"window"`
	Depth        Depth      `json:"depth,omitempty"         validate:"omitempty,oneof=quick standard deep"`
	ForceRefresh bool       `json:"force_refresh,omitempty"`
	Critical     bool       `json:"critical,omitempty"`
	Question     string     `json:"question,omitempty"      validate:"max=4000"`

	// Context holds notes gathered by earlier phases of the same request.
	Context []string `json:"-"`
}

// Normalize returns a copy with defaults applied. A missing window becomes
// the seven days ending at the start of the day after now.
func (q *Query) Normalize(now time.Time) *Query {
	out := q.clone()
	if out.Depth == "" {
		out.Depth = DepthStandard
	}
	if out.Window.To.IsZero() {
		out.Window.To = now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
	if out.Window.From.IsZero() {
		out.Window.From = out.Window.To.AddDate(0, 0, -defaultWindowDays)
	}
	return out
}

// WithContext returns a copy of the query carrying additional notes.
func (q *Query) WithContext(notes ...string) *Query {
	out := q.clone()
	out.Context = append(out.Context, notes...)
	return out
}

func (q *Query) clone() *Query {
	out := *q
	out.Topics = append([]string(nil), q.Topics...)
	out.Context = append([]string(nil), q.Context...)
	return &out
}

// ResultStatus describes how a dispatch ended.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusPartial ResultStatus = "partial"
	StatusFailure ResultStatus = "failure"
)

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// Step records the outcome of one fallback chain position.
type Step struct {
	Service  string        `json:"service"`
	Outcome  string        `json:"outcome"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	Error    string        `json:"error,omitempty"`
}

// Step outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// Result is the uniform output of an upstream call or a whole analysis.
type Result struct {
	Status        ResultStatus  `json:"status"`
	Payload       string        `json:"payload,omitempty"`
	Service       string        `json:"service,omitempty"`
	Kind          ServiceKind   `json:"kind,omitempty"`
	Confidence    float64       `json:"confidence"`
	Quality       string        `json:"quality,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	ChainPosition int           `json:"chain_position,omitempty"`
	Attempts      int           `json:"attempts,omitempty"`
	Usage         Usage         `json:"usage"`
	Sources       []string      `json:"sources,omitempty"`
	Steps         []Step        `json:"steps,omitempty"`
	FromCache     bool          `json:"from_cache,omitempty"`
	Similarity    float64       `json:"similarity,omitempty"`
	RetryAfter    time.Duration `json:"retry_after,omitempty"`
	Error         string        `json:"error,omitempty"`

	// Embedding is the query vector produced by an embedding service.
	Embedding []float64 `json:"-"`
	// Err is the terminal error of a failed dispatch.
	Err error `json:"-"`
}

// Succeeded reports whether the result carries a usable answer.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status != StatusFailure
}
