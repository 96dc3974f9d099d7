package domain

import (
	"fmt"
	"time"
)

// CostEntry is an immutable record of one billed operation.
type CostEntry struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	Operation string    `json:"operation"`
	Units     int       `json:"units"`
	Cost      float64   `json:"cost"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageSummary aggregates the cost entries of one budget period.
type UsageSummary struct {
	PeriodStart    time.Time          `json:"period_start"`
	TotalSpend     float64            `json:"total_spend"`
	PerService     map[string]float64 `json:"per_service"`
	DaysElapsed    float64            `json:"days_elapsed"`
	DaysInPeriod   int                `json:"days_in_period"`
	ProjectedSpend float64            `json:"projected_spend"`
	Limit          float64            `json:"limit"`
	Utilization    float64            `json:"utilization"`
	ComputedAt     time.Time          `json:"computed_at"`
	Degraded       bool               `json:"degraded,omitempty"`
}

// Threshold is the budget pressure level.
type Threshold int

const (
	ThresholdNormal Threshold = iota
	ThresholdWarning
	ThresholdCritical
	ThresholdEmergency
)

func (t Threshold) String() string {
	switch t {
	case ThresholdNormal:
		return "normal"
	case ThresholdWarning:
		return "warning"
	case ThresholdCritical:
		return "critical"
	case ThresholdEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// MarshalText encodes the threshold by name.
func (t Threshold) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a threshold name.
func (t *Threshold) UnmarshalText(text []byte) error {
	for candidate := ThresholdNormal; candidate <= ThresholdEmergency; candidate++ {
		if candidate.String() == string(text) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown threshold %q", text)
}

// Remediation lists the steering actions active at a threshold.
type Remediation struct {
	Threshold   Threshold `json:"threshold"`
	Utilization float64   `json:"utilization"`

	// PreferCache relaxes fuzzy matching and extends cache lifetimes.
	PreferCache bool `json:"prefer_cache"`
	// CheapestFirst orders chains by estimated cost.
	CheapestFirst bool `json:"cheapest_first"`
	// SuppressMostExpensive drops the costliest service for non-critical queries.
	SuppressMostExpensive bool `json:"suppress_most_expensive"`
	// ForceLocal routes non-critical queries to the local service only.
	ForceLocal bool `json:"force_local"`
	// ThrottleFactor scales request admission, 1 meaning unthrottled.
	ThrottleFactor float64 `json:"throttle_factor"`
}
