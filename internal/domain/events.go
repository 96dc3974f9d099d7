package domain

import "time"

// EventType names a stream event.
type EventType string

const (
	EventPhaseStarted  EventType = "phase-started"
	EventPhaseProgress EventType = "phase-progress"
	EventPartialResult EventType = "partial-result"
	EventFinalResult   EventType = "final-result"
	EventError         EventType = "error"
)

// Event is one item of a request's progress stream.
type Event struct {
	Seq       uint64    `json:"seq"`
	RequestID string    `json:"request_id"`
	Type      EventType `json:"type"`
	Phase     string    `json:"phase,omitempty"`
	Percent   int       `json:"percent,omitempty"`
	State     string    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Time      time.Time `json:"time"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventFinalResult || e.Type == EventError
}
