package models

// NetworkQualityResult is a lightweight ping-based probe result against a
// fixed target, distinct from a full SpeedtestResult.
type NetworkQualityResult struct {
	ID                int64    `json:"id"`
	Timestamp         string   `json:"timestamp"`
	TimestampUnix     float64  `json:"timestamp_unix"`
	TargetHost        string   `json:"target_host"`
	TargetName        *string  `json:"target_name"`
	PingMs            *float64 `json:"ping_ms"`
	JitterMs          *float64 `json:"jitter_ms"`
	PacketLossPercent *float64 `json:"packet_loss_percent"`
	Status            string   `json:"status"`
	ErrorMessage      *string  `json:"error_message"`
}

const (
	QualityStatusOK      = "ok"
	QualityStatusDegraded = "degraded"
	QualityStatusDown    = "down"
)
