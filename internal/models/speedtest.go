package models

// SpeedtestResult is the outcome of one speed test invocation, successful
// or not. When Status is not "success" the numeric fields are zero and
// ErrorMessage is populated.
type SpeedtestResult struct {
	ID                int64    `json:"id"`
	Timestamp         string   `json:"timestamp"`
	TimestampUnix     float64  `json:"timestamp_unix"`
	DownloadMbps      float64  `json:"download_mbps"`
	UploadMbps        float64  `json:"upload_mbps"`
	PingMs            float64  `json:"ping_ms"`
	JitterMs          *float64 `json:"jitter_ms"`
	PacketLossPercent *float64 `json:"packet_loss_percent"`
	ServerName        *string  `json:"server_name"`
	ServerLocation     *string  `json:"server_location"`
	ServerHost         *string  `json:"server_host"`
	ServerID           *string  `json:"server_id"`
	ClientIP           *string  `json:"client_ip"`
	ISP                *string  `json:"isp"`
	Tool               string   `json:"tool"`
	ResultURL          *string  `json:"result_url"`
	SignalSnapshot     *string  `json:"signal_snapshot"`
	Status             string   `json:"status"` // success|error|timeout|busy
	ErrorMessage       *string  `json:"error_message"`
	TriggeredBy        string   `json:"triggered_by"` // manual|scheduler|api
	NetworkContext      string   `json:"network_context"`
	PreTestLatencyMs   *float64 `json:"pre_test_latency_ms"`
}

const (
	SpeedtestStatusSuccess = "success"
	SpeedtestStatusError   = "error"
	SpeedtestStatusTimeout = "timeout"
	SpeedtestStatusBusy    = "busy"
)

const (
	TriggeredByManual    = "manual"
	TriggeredByScheduler = "scheduler"
	TriggeredByAPI       = "api"
)

const (
	NetworkContextBaseline = "baseline"
	NetworkContextIdle     = "idle"
	NetworkContextLight    = "light"
	NetworkContextBusy     = "busy"
	NetworkContextUnknown  = "unknown"
)

// SchedulerStats summarizes the speedtest scheduler's running state.
type SchedulerStats struct {
	CompletedRuns       int64    `json:"completed_runs"`
	FailedRuns          int64    `json:"failed_runs"`
	LastTestTime        *string  `json:"last_test_time"`
	NextTestTime        *string  `json:"next_test_time"`
	NextInSeconds        *float64 `json:"next_in_seconds"`
	AvgDownloadMbps      float64  `json:"avg_download_mbps"`
	AvgUploadMbps        float64  `json:"avg_upload_mbps"`
	Running              bool     `json:"running"`
}
