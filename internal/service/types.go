package service

import "time"

// OutageEvent is published on the poller's outage stream whenever the
// gateway circuit transitions between reachable and unreachable.
type OutageEvent struct {
	Resolved        bool      `json:"resolved"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
}

// PollStats summarizes the Gateway Poller's running state for the status API.
type PollStats struct {
	Running         bool      `json:"running"`
	SuccessCount    int64     `json:"success_count"`
	ErrorCount      int64     `json:"error_count"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastAttempt     time.Time `json:"last_attempt,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	CircuitState    string    `json:"circuit_state"`
}
