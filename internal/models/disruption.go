package models

// DisruptionEvent is a typed, severity-tagged, optionally-resolved event.
// resolved=true implies DurationSeconds and ResolvedAt are both set.
type DisruptionEvent struct {
	ID               int64   `json:"id"`
	Timestamp        string  `json:"timestamp"`
	TimestampUnix    float64 `json:"timestamp_unix"`
	EventType        string  `json:"event_type"`
	Severity         string  `json:"severity"`
	Description      string  `json:"description"`
	BeforeState      *string `json:"before_state"`
	AfterState       *string `json:"after_state"`
	DurationSeconds  *int64  `json:"duration_seconds"`
	Resolved         bool    `json:"resolved"`
	ResolvedAt       *string `json:"resolved_at"`
}

const (
	EventSignalDrop5G           = "signal_drop_5g"
	EventSignalDrop4G           = "signal_drop_4g"
	EventTowerChange5G          = "tower_change_5g"
	EventTowerChange4G          = "tower_change_4g"
	EventBandSwitch5G           = "band_switch_5g"
	EventBandSwitch4G           = "band_switch_4g"
	EventConnectionModeChange   = "connection_mode_change"
	EventGatewayUnreachable     = "gateway_unreachable"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// DisruptionStats summarizes disruption activity over a time window.
type DisruptionStats struct {
	PeriodHours      int            `json:"period_hours"`
	Total            int            `json:"total"`
	CountsByType     map[string]int `json:"counts_by_type"`
	CountsBySeverity map[string]int `json:"counts_by_severity"`
	AvgDurationSeconds float64      `json:"avg_duration_seconds"`
}
