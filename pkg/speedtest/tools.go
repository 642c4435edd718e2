package speedtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const bitsPerMbps = 1_000_000

// ToolsDir optionally overrides where speedtest CLI binaries are resolved
// from, ahead of $PATH. Empty means resolve via $PATH only.
var ToolsDir = os.Getenv("GATEWAYMON_TOOLS_DIR")

// resolveBinary looks name up under ToolsDir first, falling back to $PATH.
func resolveBinary(name string) (string, error) {
	if ToolsDir != "" {
		candidate := filepath.Join(ToolsDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}

// NewFastCLITool wraps Netflix's fast-cli (`fast --json`), which reports
// download/upload already in Mbps.
func NewFastCLITool() *Tool {
	return &Tool{
		Name:   "fast-cli",
		Detect: detectBinary("fast"),
		Measure: func(ctx context.Context) Result {
			bin, err := resolveBinary("fast")
			if err != nil {
				return Result{Status: "error", ErrorMessage: "fast-cli: binary not found"}
			}
			out, err := runCommand(ctx, 60*time.Second, bin, "--upload", "--json")
			if err == context.DeadlineExceeded {
				return Result{Status: "timeout", ErrorMessage: "fast-cli timed out"}
			}
			if err != nil || out == "" {
				return Result{Status: "error", ErrorMessage: fmt.Sprintf("fast-cli failed: %v", err)}
			}
			var payload struct {
				DownloadSpeed float64 `json:"downloadSpeed"`
				UploadSpeed   float64 `json:"uploadSpeed"`
				Latency       float64 `json:"latency"`
			}
			if jsonErr := json.Unmarshal([]byte(out), &payload); jsonErr != nil {
				return Result{Status: "error", ErrorMessage: "fast-cli: unparsable output"}
			}
			return Result{
				Status:       "success",
				DownloadMbps: payload.DownloadSpeed,
				UploadMbps:   payload.UploadSpeed,
				PingMs:       payload.Latency,
				ServerName:   "fast.com",
			}
		},
	}
}

// NewOoklaCLITool wraps Ookla's speedtest CLI (`speedtest --format=json`),
// optionally pinned to a server id. Bandwidth is reported in bytes/sec.
func NewOoklaCLITool(serverID string) *Tool {
	return &Tool{
		Name:   "speedtest-cli",
		Detect: detectBinary("speedtest"),
		Measure: func(ctx context.Context) Result {
			bin, err := resolveBinary("speedtest")
			if err != nil {
				return Result{Status: "error", ErrorMessage: "speedtest-cli: binary not found"}
			}
			args := []string{"--accept-license", "--accept-gdpr", "--format=json"}
			if serverID != "" {
				args = append(args, "--server-id="+serverID)
			}
			out, err := runCommand(ctx, 90*time.Second, bin, args...)
			if err == context.DeadlineExceeded {
				return Result{Status: "timeout", ErrorMessage: "speedtest-cli timed out"}
			}
			if err != nil || out == "" {
				return Result{Status: "error", ErrorMessage: fmt.Sprintf("speedtest-cli failed: %v", err)}
			}
			var payload struct {
				Ping struct {
					Latency float64 `json:"latency"`
					Jitter  float64 `json:"jitter"`
				} `json:"ping"`
				Download struct {
					Bandwidth float64 `json:"bandwidth"`
				} `json:"download"`
				Upload struct {
					Bandwidth float64 `json:"bandwidth"`
				} `json:"upload"`
				PacketLoss float64 `json:"packetLoss"`
				Server     struct {
					Name string `json:"name"`
					Host string `json:"host"`
				} `json:"server"`
			}
			if jsonErr := json.Unmarshal([]byte(out), &payload); jsonErr != nil {
				return Result{Status: "error", ErrorMessage: "speedtest-cli: unparsable output"}
			}
			jitter := payload.Ping.Jitter
			loss := payload.PacketLoss
			return Result{
				Status:            "success",
				DownloadMbps:      payload.Download.Bandwidth * 8 / bitsPerMbps,
				UploadMbps:        payload.Upload.Bandwidth * 8 / bitsPerMbps,
				PingMs:            payload.Ping.Latency,
				JitterMs:          &jitter,
				PacketLossPercent: &loss,
				ServerName:        payload.Server.Name,
				ServerHost:        payload.Server.Host,
			}
		},
	}
}

// NewLibreSpeedCLITool wraps librespeed-cli (`librespeed-cli --json`), which
// reports Mbps directly in its single-element JSON array.
func NewLibreSpeedCLITool() *Tool {
	return &Tool{
		Name:   "librespeed-cli",
		Detect: detectBinary("librespeed-cli"),
		Measure: func(ctx context.Context) Result {
			bin, err := resolveBinary("librespeed-cli")
			if err != nil {
				return Result{Status: "error", ErrorMessage: "librespeed-cli: binary not found"}
			}
			out, err := runCommand(ctx, 90*time.Second, bin, "--json")
			if err == context.DeadlineExceeded {
				return Result{Status: "timeout", ErrorMessage: "librespeed-cli timed out"}
			}
			if err != nil || out == "" {
				return Result{Status: "error", ErrorMessage: fmt.Sprintf("librespeed-cli failed: %v", err)}
			}
			var payload []struct {
				Download float64 `json:"download"`
				Upload   float64 `json:"upload"`
				Ping     float64 `json:"ping"`
				Jitter   float64 `json:"jitter"`
				Server   struct {
					Name string `json:"name"`
				} `json:"server"`
			}
			if jsonErr := json.Unmarshal([]byte(out), &payload); jsonErr != nil || len(payload) == 0 {
				return Result{Status: "error", ErrorMessage: "librespeed-cli: unparsable output"}
			}
			r := payload[0]
			jitter := r.Jitter
			return Result{
				Status:       "success",
				DownloadMbps: r.Download,
				UploadMbps:   r.Upload,
				PingMs:       r.Ping,
				JitterMs:     &jitter,
				ServerName:   r.Server.Name,
			}
		},
	}
}

// NewCDNProbe builds a download-only tool that times an HTTP GET against a
// fixed CDN URL and derives Mbps from bytes transferred over elapsed time.
func NewCDNProbe(name, serverName, url string) *Tool {
	client := &http.Client{}
	return &Tool{
		Name: name,
		Detect: func(ctx context.Context) bool {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				return false
			}
			resp, err := client.Do(req)
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			return resp.StatusCode < 500
		},
		Measure: func(ctx context.Context) Result {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return Result{Status: "error", ErrorMessage: err.Error()}
			}
			start := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() == context.DeadlineExceeded {
					return Result{Status: "timeout", ErrorMessage: "cdn probe timed out"}
				}
				return Result{Status: "error", ErrorMessage: err.Error()}
			}
			defer resp.Body.Close()

			n, err := io.Copy(io.Discard, resp.Body)
			elapsed := time.Since(start).Seconds()
			if err != nil && n == 0 {
				return Result{Status: "error", ErrorMessage: err.Error()}
			}
			if elapsed <= 0 {
				elapsed = 0.001
			}
			mbps := (float64(n) * 8) / bitsPerMbps / elapsed
			return Result{
				Status:       "success",
				DownloadMbps: mbps,
				UploadMbps:   0,
				PingMs:       0,
				ServerName:   serverName,
				ServerHost:   url,
			}
		},
	}
}

func detectBinary(name string) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		path, err := resolveBinary(name)
		if err != nil {
			return false
		}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		cmd := exec.CommandContext(cctx, path, "--version")
		return cmd.Run() == nil
	}
}
