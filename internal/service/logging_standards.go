package service

// Structured logging field names shared by the HTTP middleware stack, kept
// here so every component tags requests the same way.
const (
	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"
	LogFieldMethod     = "method"
	LogFieldURL        = "url"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
	LogFieldStatusCode = "status_code"
	LogFieldDuration   = "duration_ms"
	LogFieldSize       = "response_size"
	LogFieldService    = "service"
	LogFieldComponent  = "component"
)

// Mask replaces all but the trailing visibleSuffix characters of a secret
// value, for safe inclusion in logs.
func Mask(value string, visibleSuffix int) string {
	if value == "" {
		return ""
	}
	if len(value) <= visibleSuffix {
		return "***"
	}
	return "***" + value[len(value)-visibleSuffix:]
}
