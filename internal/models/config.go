package models

// Config holds the full application configuration tree.
type Config struct {
	Gateway       GatewayConfig   `json:"gateway" mapstructure:"gateway"`
	Database      DatabaseConfig  `json:"database" mapstructure:"database"`
	Alerts        AlertConfig     `json:"alerts" mapstructure:"alerts"`
	Scheduler     SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`
	Probe         ProbeConfig     `json:"probe" mapstructure:"probe"`
	Retry         RetryConfig     `json:"retry" mapstructure:"retry"`
	Tracing       TracingSettings `json:"tracing" mapstructure:"tracing"`
	LogLevel      string          `json:"log_level" mapstructure:"log_level"`
	RetentionDays int             `json:"retentionDays" mapstructure:"retentionDays"`
}

// TracingSettings mirrors tracing.TracingConfig at the config-file boundary,
// kept separate so internal/models has no dependency on internal/tracing.
type TracingSettings struct {
	Enabled      bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName  string  `json:"service_name" mapstructure:"service_name"`
	Environment  string  `json:"environment" mapstructure:"environment"`
	OTLPEndpoint string  `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate" mapstructure:"sample_rate"`
	UseStdout    bool    `json:"use_stdout" mapstructure:"use_stdout"`
}

// GatewayConfig holds the poller's connection to the gateway's TMI endpoint.
type GatewayConfig struct {
	Host                   string  `json:"host" mapstructure:"host"`
	Port                   int     `json:"port" mapstructure:"port"`
	PollIntervalMs         int     `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	TimeoutSeconds         int     `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	FailureThreshold       int     `json:"failure_threshold" mapstructure:"failure_threshold"`
	RecoveryTimeoutSeconds int     `json:"recovery_timeout_seconds" mapstructure:"recovery_timeout_seconds"`
	SinrDropThresholdDB    float64 `json:"sinr_drop_threshold_db" mapstructure:"sinr_drop_threshold_db"`
}

// DatabaseConfig holds database connection and pool-tuning parameters.
type DatabaseConfig struct {
	Path                string `json:"path" mapstructure:"path"`
	Host                string `json:"host,omitempty" mapstructure:"host"`
	Port                int    `json:"port,omitempty" mapstructure:"port"`
	Name                string `json:"name,omitempty" mapstructure:"name"`
	User                string `json:"user,omitempty" mapstructure:"user"`
	Password            string `json:"password,omitempty" mapstructure:"password"`
	MaxOpenConnections  int    `json:"max_open_connections" mapstructure:"max_open_connections"`
	MaxIdleConnections  int    `json:"max_idle_connections" mapstructure:"max_idle_connections"`
	ConnMaxLifetimeSec  int    `json:"conn_max_lifetime_sec" mapstructure:"conn_max_lifetime_sec"`
	ConnMaxIdleTimeSec  int    `json:"conn_max_idle_time_sec" mapstructure:"conn_max_idle_time_sec"`
}

// AlertConfig holds the thresholds and cooldown window driving the alert engine.
type AlertConfig struct {
	Enabled               bool    `json:"enabled" mapstructure:"enabled"`
	NotifyOnWarning       bool    `json:"notify_on_warning" mapstructure:"notify_on_warning"`
	NotifyOnCritical      bool    `json:"notify_on_critical" mapstructure:"notify_on_critical"`
	SinrCriticalDB        float64 `json:"sinr_critical_db" mapstructure:"sinr_critical_db"`
	SinrWarningDB         float64 `json:"sinr_warning_db" mapstructure:"sinr_warning_db"`
	RsrpCriticalDBm       float64 `json:"rsrp_critical_dbm" mapstructure:"rsrp_critical_dbm"`
	RsrpWarningDBm        float64 `json:"rsrp_warning_dbm" mapstructure:"rsrp_warning_dbm"`
	RsrqCriticalDB        float64 `json:"rsrq_critical_db" mapstructure:"rsrq_critical_db"`
	RsrqWarningDB         float64 `json:"rsrq_warning_db" mapstructure:"rsrq_warning_db"`
	SpeedLowMbps          float64 `json:"speed_low_mbps" mapstructure:"speed_low_mbps"`
	PacketLossPercent     float64 `json:"packet_loss_percent" mapstructure:"packet_loss_percent"`
	JitterMs              float64 `json:"jitter_ms" mapstructure:"jitter_ms"`
	SignalDropThresholdDB float64 `json:"signal_drop_threshold_db" mapstructure:"signal_drop_threshold_db"`
	CooldownMinutes       int     `json:"cooldown_minutes" mapstructure:"cooldown_minutes"`
}

// SchedulerConfig drives the SpeedtestScheduler's cadence and gating window.
type SchedulerConfig struct {
	Enabled                  bool     `json:"enabled" mapstructure:"enabled"`
	IntervalMinutes          int      `json:"interval_minutes" mapstructure:"interval_minutes"`
	TimeWindowStart          *int     `json:"time_window_start,omitempty" mapstructure:"time_window_start"`
	TimeWindowEnd            *int     `json:"time_window_end,omitempty" mapstructure:"time_window_end"`
	RunOnWeekends            bool     `json:"run_on_weekends" mapstructure:"run_on_weekends"`
	ToolsToRun               []string `json:"tools_to_run,omitempty" mapstructure:"tools_to_run"`
	DelayBetweenToolsSeconds *int     `json:"delay_between_tools_seconds,omitempty" mapstructure:"delay_between_tools_seconds"`
}

// ProbeConfig drives the lightweight network-quality prober.
type ProbeConfig struct {
	Enabled         bool     `json:"enabled" mapstructure:"enabled"`
	Targets         []string `json:"targets" mapstructure:"targets"`
	IntervalSeconds int      `json:"interval_seconds" mapstructure:"interval_seconds"`
	TimeoutSeconds  int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	PingCount       int      `json:"ping_count" mapstructure:"ping_count"`
}

// RetryConfig holds backoff tuning read from the config file. The loader
// fills its defaults and validates its bounds; no other package reads it.
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"maxBackoffMs" mapstructure:"max_backoff_ms"`
	MaxAttempts      int `json:"maxAttempts" mapstructure:"max_attempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
