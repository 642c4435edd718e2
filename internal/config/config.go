package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gatewaymon/internal/constants"
	"gatewaymon/internal/models"
	"gatewaymon/internal/security"
	"gatewaymon/internal/validation"
)

var (
	ErrMissingGatewayHost = models.ConfigError{Message: "missing gateway host"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validateBounds(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Gateway.PollIntervalMs <= 0 {
		if os.Getenv("GATEWAYMON_ENV") == "production" {
			c.Gateway.PollIntervalMs = constants.DefaultPollIntervalMs
		} else {
			c.Gateway.PollIntervalMs = constants.DefaultPollIntervalDevMs
		}
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = constants.DefaultGatewayHTTPTimeoutSec
	}
	if c.Gateway.FailureThreshold <= 0 {
		c.Gateway.FailureThreshold = constants.DefaultFailureThreshold
	}
	if c.Gateway.RecoveryTimeoutSeconds <= 0 {
		c.Gateway.RecoveryTimeoutSeconds = constants.DefaultHalfOpenProbeBackoff
	}
	if c.Gateway.SinrDropThresholdDB == 0 {
		c.Gateway.SinrDropThresholdDB = constants.DefaultSignalDropThresholdDB
	}

	if c.Database.MaxOpenConnections <= 0 {
		c.Database.MaxOpenConnections = constants.DefaultDBMaxOpenConnections
	}
	if c.Database.MaxIdleConnections <= 0 {
		c.Database.MaxIdleConnections = constants.DefaultDBMaxIdleConnections
	}
	if c.Database.ConnMaxLifetimeSec <= 0 {
		c.Database.ConnMaxLifetimeSec = constants.DefaultDBConnMaxLifetimeSec
	}
	if c.Database.ConnMaxIdleTimeSec <= 0 {
		c.Database.ConnMaxIdleTimeSec = constants.DefaultDBConnMaxIdleTimeSec
	}

	if c.Alerts.SinrCriticalDB == 0 {
		c.Alerts.SinrCriticalDB = constants.DefaultSinrCriticalDB
	}
	if c.Alerts.SinrWarningDB == 0 {
		c.Alerts.SinrWarningDB = constants.DefaultSinrWarningDB
	}
	if c.Alerts.RsrpCriticalDBm == 0 {
		c.Alerts.RsrpCriticalDBm = constants.DefaultRsrpCriticalDBm
	}
	if c.Alerts.RsrpWarningDBm == 0 {
		c.Alerts.RsrpWarningDBm = constants.DefaultRsrpWarningDBm
	}
	if c.Alerts.RsrqCriticalDB == 0 {
		c.Alerts.RsrqCriticalDB = constants.DefaultRsrqCriticalDB
	}
	if c.Alerts.RsrqWarningDB == 0 {
		c.Alerts.RsrqWarningDB = constants.DefaultRsrqWarningDB
	}
	if c.Alerts.SpeedLowMbps == 0 {
		c.Alerts.SpeedLowMbps = constants.DefaultSpeedLowMbps
	}
	if c.Alerts.PacketLossPercent == 0 {
		c.Alerts.PacketLossPercent = constants.DefaultPacketLossPercent
	}
	if c.Alerts.JitterMs == 0 {
		c.Alerts.JitterMs = constants.DefaultJitterMs
	}
	if c.Alerts.SignalDropThresholdDB == 0 {
		c.Alerts.SignalDropThresholdDB = constants.DefaultSignalDropThresholdDB
	}
	if c.Alerts.CooldownMinutes <= 0 {
		c.Alerts.CooldownMinutes = constants.DefaultAlertCooldownMinutes
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		c.Scheduler.IntervalMinutes = constants.DefaultSpeedtestIntervalMinutes
	}
	if c.Scheduler.DelayBetweenToolsSeconds == nil {
		defaultDelay := constants.DefaultToolDelaySeconds
		c.Scheduler.DelayBetweenToolsSeconds = &defaultDelay
	}

	if c.Probe.IntervalSeconds <= 0 {
		c.Probe.IntervalSeconds = constants.DefaultProbeTimeoutSec
	}
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = constants.DefaultProbeTimeoutSec
	}
	if c.Probe.PingCount <= 0 {
		c.Probe.PingCount = 4
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "gatewaymon"
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = "development"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func validate(c *models.Config) error {
	if c.Gateway.Host == "" {
		return ErrMissingGatewayHost
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("GATEWAY_HOST"); v != "" {
		c.Gateway.Host = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = n
		}
	}
	if v := os.Getenv("GATEWAY_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.PollIntervalMs = n
		}
	}
	if v := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("GATEWAY_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.FailureThreshold = n
		}
	}
	if v := os.Getenv("GATEWAY_RECOVERY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.RecoveryTimeoutSeconds = n
		}
	}
	if v := os.Getenv("GATEWAY_SINR_DROP_THRESHOLD_DB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Gateway.SinrDropThresholdDB = f
		}
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.Port = n
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// validateSecurity performs security-specific validation.
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("GATEWAYMON_ENV") == "production"

	if isProduction {
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production"}
		}
		if os.Getenv("GATEWAYMON_ENABLE_ENCRYPTION") == "true" && os.Getenv("GATEWAYMON_ENCRYPTION_SECRET") == "" {
			return models.ConfigError{Message: "GATEWAYMON_ENCRYPTION_SECRET is required when encryption is enabled in production"}
		}
	}

	return nil
}

// validateBounds performs bounds checking on configuration values.
func validateBounds(c *models.Config) error {
	if err := validation.ValidateHost(c.Gateway.Host); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateTimeout(c.Gateway.TimeoutSeconds, "gateway timeout"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateNumericRange(c.Gateway.FailureThreshold, "gateway failure threshold", 1, 100); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateConnectionPool(c.Database.MaxOpenConnections, c.Database.MaxIdleConnections); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateTimeout(c.Database.ConnMaxLifetimeSec, "database connection max lifetime"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateRetentionDays(c.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateNumericRange(c.Retry.InitialBackoffMs, "initial backoff milliseconds", 10, 10000); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validation.ValidateNumericRange(c.Retry.MaxBackoffMs, "max backoff milliseconds", 100, 60000); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return models.ConfigError{Message: "max backoff must be greater than or equal to initial backoff"}
	}

	if err := validation.ValidateNumericRange(c.Retry.MaxAttempts, "max retry attempts", 1, 20); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	for i, target := range c.Probe.Targets {
		if err := validation.ValidateHost(target); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("probe target %d: %s", i, err.Error())}
		}
	}

	if c.Scheduler.TimeWindowStart != nil {
		if err := validation.ValidateNumericRange(*c.Scheduler.TimeWindowStart, "scheduler time window start", 0, 23); err != nil {
			return models.ConfigError{Message: err.Error()}
		}
	}
	if c.Scheduler.TimeWindowEnd != nil {
		if err := validation.ValidateNumericRange(*c.Scheduler.TimeWindowEnd, "scheduler time window end", 0, 23); err != nil {
			return models.ConfigError{Message: err.Error()}
		}
	}
	if c.Scheduler.DelayBetweenToolsSeconds != nil {
		if err := validation.ValidateNumericRange(*c.Scheduler.DelayBetweenToolsSeconds, "scheduler delay between tools seconds", 0, 300); err != nil {
			return models.ConfigError{Message: err.Error()}
		}
	}

	return nil
}
