package privacy

import (
	"fmt"
	"strings"
)

// MaskIPAddress masks the host-identifying octets of an IPv4 address or the
// low segments of an IPv6 address, keeping enough of the prefix to place the
// client on a subnet without exposing the full address.
// Example: "192.168.1.57" -> "192.168.1.***"
func MaskIPAddress(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) <= 2 {
			return maskString(ip, 4)
		}
		return strings.Join(parts[:len(parts)-2], ":") + ":****:****"
	}

	octets := strings.Split(ip, ".")
	if len(octets) == 4 {
		return strings.Join(octets[:3], ".") + ".***"
	}
	return maskString(ip, 4)
}

// MaskCellID masks a gNB/eNB tower identifier, keeping the last 4 characters
// so distinct towers remain distinguishable in logs without exposing the
// full identifier.
// Example: "310410123456" -> "********3456"
func MaskCellID(id string) string {
	return maskString(id, 4)
}

// MaskHostname masks a gateway or database hostname, keeping only enough of
// the tail to tell entries apart during debugging.
// Example: "gateway.lan" -> "*******.lan"
func MaskHostname(host string) string {
	if host == "" {
		return ""
	}
	if idx := strings.LastIndex(host, "."); idx > 0 {
		return strings.Repeat("*", idx) + host[idx:]
	}
	return maskString(host, 4)
}

// MaskCredential fully redacts a password, token, or API key. Credentials
// carry no useful debugging signal in partial form, unlike the identifiers
// above, so nothing of the value survives.
func MaskCredential(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

// maskString masks a string showing only the last n characters.
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies field-appropriate masking to a decoded request
// or response body (or any structured log field set) keyed by the common
// field names used across the gateway/database configuration and HTTP
// logging surface.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch strings.ToLower(k) {
		case "remote_ip", "client_ip", "ip", "ip_address", "host", "remote_addr":
			if s, ok := v.(string); ok {
				masked[k] = MaskIPAddress(s)
			} else {
				masked[k] = v
			}
		case "gnb_id", "enb_id", "gnbid", "enbid", "cell_id", "tower_id":
			if s, ok := v.(string); ok {
				masked[k] = MaskCellID(s)
			} else {
				masked[k] = v
			}
		case "db_host", "database_host", "hostname":
			if s, ok := v.(string); ok {
				masked[k] = MaskHostname(s)
			} else {
				masked[k] = v
			}
		case "password", "secret", "token", "auth_token", "api_key", "apikey", "authorization":
			masked[k] = MaskCredential(fmt.Sprintf("%v", v))
		default:
			masked[k] = v
		}
	}

	return masked
}
