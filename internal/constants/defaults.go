package constants

// Default polling configuration values
const (
	DefaultPollIntervalMs       = 2000
	DefaultPollIntervalDevMs    = 200
	DefaultPollTimeoutSec       = 10
	DefaultRetryBackoffMs       = 1000
	DefaultMaxBackoffMs         = 60000
	DefaultMaxAttempts          = 5
	DefaultRetentionDays        = 30
	DefaultServerPort           = 8082
	DefaultFailureThreshold     = 3
	DefaultRecoveryThreshold    = 2
	DefaultHalfOpenProbeBackoff = 5
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec          = 30
	DefaultDatabaseRetryAttempts   = 3
	DefaultGracefulShutdownSec     = 30
	DefaultBackoffInitialMs        = 500
	DefaultBackoffMaxSec           = 5
	DefaultServerReadTimeoutSec    = 15
	DefaultServerWriteTimeoutSec   = 15
	DefaultServerIdleTimeoutSec    = 60
	DefaultRateLimitPerMinute      = 100
	DefaultRateLimitCleanupMinutes = 5
	DefaultDBMaxOpenConnections    = 25
	DefaultDBMaxIdleConnections    = 5
	DefaultDBConnMaxLifetimeSec    = 300 // 5 minutes
	DefaultDBConnMaxIdleTimeSec    = 60  // 1 minute
	DefaultGatewayHTTPTimeoutSec   = 10
	DefaultSpeedtestTimeoutSec     = 90
	DefaultProbeTimeoutSec         = 15
	DefaultToolGraceSec            = 3
)

// Disruption detection defaults
const (
	DefaultRSRPDropDbm        = 6
	DefaultRSRQDropDb         = 3
	DefaultConsecutiveSamples = 3
	DefaultCooldownSeconds    = 300
)

// Alert threshold defaults, per the glossary's default operating ranges.
const (
	DefaultSinrCriticalDB        = -5.0
	DefaultSinrWarningDB         = 0.0
	DefaultRsrpCriticalDBm       = -110.0
	DefaultRsrpWarningDBm        = -100.0
	DefaultRsrqCriticalDB        = -19.0
	DefaultRsrqWarningDB         = -15.0
	DefaultSpeedLowMbps          = 10.0
	DefaultPacketLossPercent     = 5.0
	DefaultJitterMs              = 50.0
	DefaultSignalDropThresholdDB = 10.0
	DefaultAlertCooldownMinutes  = 5
)

// Field length bounds
const (
	MaxHostLength = 255
)

// Speedtest scheduling defaults
const (
	DefaultSpeedtestIntervalMinutes = 60
	DefaultSpeedtestWindowStartHour = 0
	DefaultSpeedtestWindowEndHour   = 23
	DefaultToolDelaySeconds         = 10
)

// Numeric conversions
const (
	MillisecondsPerSecond = 1000
	SecondsPerDay         = 86400
)

// Size and length constants
const (
	MaxOutputBytes = 1 << 20 // cap captured subprocess stdout/stderr
)

// Channel and buffer sizes
const (
	ServerErrorChannelSize = 1
	EventBusBufferSize     = 64
	AlertCommandBufferSize = 32
)

// File size and conversion constants
const (
	BytesPerMegabyte = 1024 * 1024
)

// File permission constants
const (
	DefaultFilePermissions      = 0600 // Read/write for owner only
	DefaultDirectoryPermissions = 0750 // Read/write/execute for owner, read/execute for group
)

// Encryption constants
const (
	PBKDF2Iterations      = 100000 // PBKDF2 iterations for key derivation
	DefaultEncryptionSalt = "gatewaymon-salt-v1"
)
