package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"gatewaymon/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name        string
		host        string
		expectError bool
		errorCode   errors.ErrorCode
	}{
		{
			name:        "valid IPv4",
			host:        "192.168.1.1",
			expectError: false,
		},
		{
			name:        "valid hostname",
			host:        "gateway.local",
			expectError: false,
		},
		{
			name:        "empty host",
			host:        "",
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "too long",
			host:        strings.Repeat("a", 256),
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "contains whitespace",
			host:        "192.168.1.1 extra",
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHTTPRequestSize(t *testing.T) {
	maxSize := int64(1024 * 1024) // 1MB

	tests := []struct {
		name          string
		contentLength int64
		expectError   bool
		errorCode     errors.ErrorCode
	}{
		// Valid cases
		{
			name:          "valid small request",
			contentLength: 1024, // 1KB
			expectError:   false,
		},
		{
			name:          "valid max size request",
			contentLength: maxSize,
			expectError:   false,
		},
		{
			name:          "zero size request",
			contentLength: 0,
			expectError:   false,
		},

		// Invalid cases
		{
			name:          "negative content length",
			contentLength: -1,
			expectError:   true,
			errorCode:     errors.ErrCodeInvalidInput,
		},
		{
			name:          "too large request",
			contentLength: maxSize + 1,
			expectError:   true,
			errorCode:     errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", nil)
			req.ContentLength = tt.contentLength

			err := ValidateHTTPRequestSize(req, maxSize)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		fieldName   string
		minLength   int
		maxLength   int
		expectError bool
		errorCode   errors.ErrorCode
	}{
		// Valid cases
		{
			name:        "valid string within bounds",
			value:       "hello",
			fieldName:   "message",
			minLength:   1,
			maxLength:   10,
			expectError: false,
		},
		{
			name:        "minimum length string",
			value:       "h",
			fieldName:   "message",
			minLength:   1,
			maxLength:   10,
			expectError: false,
		},
		{
			name:        "maximum length string",
			value:       "1234567890",
			fieldName:   "message",
			minLength:   1,
			maxLength:   10,
			expectError: false,
		},

		// Invalid cases
		{
			name:        "string too short",
			value:       "",
			fieldName:   "message",
			minLength:   1,
			maxLength:   10,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "string too long",
			value:       "12345678901",
			fieldName:   "message",
			minLength:   1,
			maxLength:   10,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStringLength(tt.value, tt.fieldName, tt.minLength, tt.maxLength)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNumericRange(t *testing.T) {
	tests := []struct {
		name        string
		value       int
		fieldName   string
		min         int
		max         int
		expectError bool
		errorCode   errors.ErrorCode
	}{
		// Valid cases
		{
			name:        "valid value within range",
			value:       5,
			fieldName:   "port",
			min:         1,
			max:         10,
			expectError: false,
		},
		{
			name:        "minimum value",
			value:       1,
			fieldName:   "port",
			min:         1,
			max:         10,
			expectError: false,
		},
		{
			name:        "maximum value",
			value:       10,
			fieldName:   "port",
			min:         1,
			max:         10,
			expectError: false,
		},

		// Invalid cases
		{
			name:        "value too small",
			value:       0,
			fieldName:   "port",
			min:         1,
			max:         10,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "value too large",
			value:       11,
			fieldName:   "port",
			min:         1,
			max:         10,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNumericRange(tt.value, tt.fieldName, tt.min, tt.max)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	tests := []struct {
		name        string
		timeoutSec  int
		fieldName   string
		expectError bool
		errorCode   errors.ErrorCode
	}{
		// Valid cases
		{
			name:        "valid short timeout",
			timeoutSec:  1,
			fieldName:   "connect timeout",
			expectError: false,
		},
		{
			name:        "valid medium timeout",
			timeoutSec:  60,
			fieldName:   "connect timeout",
			expectError: false,
		},
		{
			name:        "valid maximum timeout",
			timeoutSec:  3600,
			fieldName:   "connect timeout",
			expectError: false,
		},

		// Invalid cases
		{
			name:        "zero timeout",
			timeoutSec:  0,
			fieldName:   "connect timeout",
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "negative timeout",
			timeoutSec:  -1,
			fieldName:   "connect timeout",
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "timeout too large",
			timeoutSec:  3601,
			fieldName:   "connect timeout",
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeout(tt.timeoutSec, tt.fieldName)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConnectionPool(t *testing.T) {
	tests := []struct {
		name        string
		maxOpen     int
		maxIdle     int
		expectError bool
		errorCode   errors.ErrorCode
	}{
		// Valid cases
		{
			name:        "valid pool settings",
			maxOpen:     10,
			maxIdle:     5,
			expectError: false,
		},
		{
			name:        "minimum settings",
			maxOpen:     1,
			maxIdle:     0,
			expectError: false,
		},
		{
			name:        "maxIdle equals maxOpen",
			maxOpen:     10,
			maxIdle:     10,
			expectError: false,
		},
		{
			name:        "maximum settings",
			maxOpen:     1000,
			maxIdle:     1000,
			expectError: false,
		},

		// Invalid cases
		{
			name:        "maxOpen too small",
			maxOpen:     0,
			maxIdle:     0,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "maxOpen too large",
			maxOpen:     1001,
			maxIdle:     10,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "maxIdle negative",
			maxOpen:     10,
			maxIdle:     -1,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "maxIdle greater than maxOpen",
			maxOpen:     10,
			maxIdle:     15,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConnectionPool(tt.maxOpen, tt.maxIdle)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRetentionDays(t *testing.T) {
	tests := []struct {
		name        string
		days        int
		expectError bool
		errorCode   errors.ErrorCode
	}{
		// Valid cases
		{
			name:        "valid short retention",
			days:        1,
			expectError: false,
		},
		{
			name:        "valid medium retention",
			days:        30,
			expectError: false,
		},
		{
			name:        "valid long retention",
			days:        365,
			expectError: false,
		},
		{
			name:        "maximum retention",
			days:        3650,
			expectError: false,
		},

		// Invalid cases
		{
			name:        "zero days",
			days:        0,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "negative days",
			days:        -1,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
		{
			name:        "days too large",
			days:        3651,
			expectError: true,
			errorCode:   errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRetentionDays(tt.days)
			if tt.expectError {
				assert.Error(t, err)
				if tt.errorCode != "" {
					assert.Equal(t, string(tt.errorCode), string(errors.GetCode(err)))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
