package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gatewaymon/internal/httputil"
	"gatewaymon/internal/metrics"
	"gatewaymon/internal/privacy"
	"gatewaymon/internal/service"
	"gatewaymon/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ObservabilityMiddleware adds metrics collection and tracing to HTTP requests
func ObservabilityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Add tracing information to request context (legacy + OpenTelemetry)
			ctx, span := tracing.WithOtelTracing(r.Context(), "http_request")
			defer span.End()

			// Generate and add request ID for legacy tracing
			requestID := tracing.GenerateRequestID()
			ctx = tracing.WithRequestID(ctx, requestID)
			ctx = tracing.WithStartTime(ctx, time.Now())

			r = r.WithContext(ctx)

			// Add HTTP-specific OpenTelemetry attributes
			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.scheme", r.URL.Scheme),
				attribute.String("http.host", r.Host),
				attribute.String("http.route", r.URL.Path),
				attribute.String("user_agent.original", r.Header.Get("User-Agent")),
				attribute.String("client.address", httputil.GetClientIP(r)),
			)

			// Get tracing info for logging
			requestInfo := tracing.GetRequestInfo(ctx)

			// Create a response wrapper to capture status code and response size
			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				responseSize:   0,
			}

			// Log request start with tracing fields, masking the client
			// address before it reaches the log
			startFields := privacy.MaskSensitiveFields(map[string]interface{}{
				service.LogFieldRequestID: requestInfo.RequestID,
				service.LogFieldTraceID:   requestInfo.TraceID,
				service.LogFieldMethod:    r.Method,
				service.LogFieldURL:       r.URL.Path,
				service.LogFieldRemoteIP:  httputil.GetClientIP(r),
				service.LogFieldUserAgent: r.Header.Get("User-Agent"),
				"content_length":          r.ContentLength,
			})
			logger.WithFields(startFields).Info("HTTP request started")

			// Record request metrics
			metrics.IncrementCounter("http_requests_total", map[string]string{
				"method":   r.Method,
				"endpoint": r.URL.Path,
			}, "Total HTTP requests")

			// Track concurrent requests
			metrics.IncrementCounter("http_requests_active", nil, "Currently active HTTP requests")
			defer func() {
				metrics.AddToCounter("http_requests_active", -1, nil, "Currently active HTTP requests")
			}()

			// Process request
			next.ServeHTTP(wrapper, r)

			// Calculate request duration
			duration := tracing.Duration(ctx)

			// Add final OpenTelemetry attributes
			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
				attribute.Int64("http.request.duration_ms", duration.Milliseconds()),
			)

			// Set OpenTelemetry span status based on HTTP status
			if wrapper.statusCode >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "")
			}

			// Record timing metrics
			metrics.RecordTimer("http_request_duration", duration, map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "HTTP request duration")

			// Record status code metrics
			metrics.IncrementCounter("http_responses_total", map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "HTTP responses by status code")

			// Record response size metrics
			if wrapper.responseSize > 0 {
				metrics.RecordTimer("http_response_size", time.Duration(wrapper.responseSize)*time.Millisecond, map[string]string{
					"method":   r.Method,
					"endpoint": r.URL.Path,
				}, "HTTP response size in bytes")
			}

			// Determine log level based on status code
			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			// Log request completion with metrics
			completionFields := privacy.MaskSensitiveFields(map[string]interface{}{
				service.LogFieldRequestID:  requestInfo.RequestID,
				service.LogFieldTraceID:    requestInfo.TraceID,
				service.LogFieldMethod:     r.Method,
				service.LogFieldURL:        r.URL.Path,
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   duration.Milliseconds(),
				service.LogFieldRemoteIP:   httputil.GetClientIP(r),
				service.LogFieldSize:       wrapper.responseSize,
			})
			logger.WithFields(completionFields).Log(logLevel, "HTTP request completed")
		})
	}
}

// CommandObservabilityMiddleware adds specific observability for the HTTP
// façade's state-mutating command endpoints (speedtest trigger, scheduler
// start/stop, alert ack) — routes that act on the running service rather
// than just reading its state, and so warrant per-command metrics and logs.
func CommandObservabilityMiddleware(logger *logrus.Logger, commandType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Start OpenTelemetry span for the command
			ctx, span := tracing.WithOtelTracing(r.Context(), "command_request")
			defer span.End()
			r = r.WithContext(ctx)

			// Add command-specific OpenTelemetry attributes
			tracing.AddSpanAttributes(ctx,
				attribute.String("command.type", commandType),
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("client.address", httputil.GetClientIP(r)),
				attribute.String("http.request.header.content-type", r.Header.Get("Content-Type")),
				attribute.Int64("http.request.content_length", r.ContentLength),
			)

			// Increment command-specific metrics
			metrics.IncrementCounter("command_requests_total", map[string]string{
				"type": commandType,
			}, "Total command requests by type")

			// Get tracing info from context
			requestInfo := tracing.GetRequestInfo(r.Context())

			// Create response wrapper
			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				responseSize:   0,
			}

			// Log command start with privacy-aware fields
			startFields := privacy.MaskSensitiveFields(map[string]interface{}{
				service.LogFieldRequestID: requestInfo.RequestID,
				service.LogFieldTraceID:   requestInfo.TraceID,
				service.LogFieldService:   "command",
				service.LogFieldComponent: commandType,
				service.LogFieldRemoteIP:  httputil.GetClientIP(r),
				"content_type":            r.Header.Get("Content-Type"),
				"content_length":          r.ContentLength,
			})
			logger.WithFields(startFields).Info("Command request started")

			// Process the command
			next.ServeHTTP(wrapper, r)

			// Calculate processing time
			processingTime := time.Since(startTime)

			// Add final OpenTelemetry attributes for the command
			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
				attribute.Int64("command.processing_duration_ms", processingTime.Milliseconds()),
			)

			// Set OpenTelemetry span status for the command
			if wrapper.statusCode >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("command failed with HTTP %d", wrapper.statusCode))
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "command processed successfully")
			}

			// Record command timing
			metrics.RecordTimer("command_processing_duration", processingTime, map[string]string{
				"type":        commandType,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "Command processing duration")

			// Record command status metrics
			if wrapper.statusCode >= 400 {
				metrics.IncrementCounter("command_errors_total", map[string]string{
					"type":        commandType,
					"status_code": strconv.Itoa(wrapper.statusCode),
				}, "Command processing errors")
			} else {
				metrics.IncrementCounter("command_success_total", map[string]string{
					"type": commandType,
				}, "Successful command processing")
			}

			// Log command completion
			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 {
				logLevel = logrus.ErrorLevel
			}

			completionFields := privacy.MaskSensitiveFields(map[string]interface{}{
				service.LogFieldRequestID:  requestInfo.RequestID,
				service.LogFieldTraceID:    requestInfo.TraceID,
				service.LogFieldService:    "command",
				service.LogFieldComponent:  commandType,
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   processingTime.Milliseconds(),
				service.LogFieldSize:       wrapper.responseSize,
			})
			logger.WithFields(completionFields).Log(logLevel, "Command request completed")
		})
	}
}

// GetClientIP is a package-local convenience wrapper around
// httputil.GetClientIP for middleware that doesn't otherwise import
// httputil.
func GetClientIP(r *http.Request) string {
	return httputil.GetClientIP(r)
}

// responseWrapper captures response metrics
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}
