package service

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"gatewaymon/internal/database"
	"gatewaymon/internal/models"
	"gatewaymon/internal/retry"

	"github.com/sirupsen/logrus"
)

var (
	rttPatternLinux = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)
	rttPatternDarwin = rttPatternLinux
	rttPatternWindows = regexp.MustCompile(`time[=<](\d+)ms`)

	transmitPatternUnix    = regexp.MustCompile(`(\d+) packets transmitted, (\d+)`)
	transmitPatternWindows = regexp.MustCompile(`Sent = (\d+), Received = (\d+)`)
)

// PingTarget names one host the Network Quality Prober watches.
type PingTarget struct {
	Host string
	Name string
}

// NetworkProber periodically pings a fixed set of targets and persists
// latency/jitter/loss rows for each.
type NetworkProber struct {
	db         *database.Database
	targets    []PingTarget
	interval   time.Duration
	pingCount  int
	timeout    time.Duration
	logger     *logrus.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewNetworkProber builds a prober for the given targets.
func NewNetworkProber(db *database.Database, targets []PingTarget, interval time.Duration, pingCount int, timeout time.Duration, logger *logrus.Logger) *NetworkProber {
	if logger == nil {
		logger = logrus.New()
	}
	if pingCount <= 0 {
		pingCount = 4
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NetworkProber{
		db:        db,
		targets:   targets,
		interval:  interval,
		pingCount: pingCount,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start begins the probe loop in the background.
func (p *NetworkProber) Start() {
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop()
}

// Stop interrupts the probe loop.
func (p *NetworkProber) Stop() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	<-p.doneCh
}

func (p *NetworkProber) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.probeAll()
		}
	}
}

func (p *NetworkProber) probeAll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout*time.Duration(p.pingCount)+5*time.Second)
	defer cancel()

	for _, target := range p.targets {
		result := p.pingWithRetry(ctx, target)
		if p.db == nil {
			continue
		}
		now := time.Now().UTC()
		rec := &models.NetworkQualityResult{
			Timestamp:         now.Format(time.RFC3339),
			TimestampUnix:     float64(now.Unix()),
			TargetHost:        target.Host,
			TargetName:        nullableIfEmpty(target.Name),
			PingMs:            result.LatencyMs,
			JitterMs:          result.JitterMs,
			PacketLossPercent: &result.PacketLossPercent,
			Status:            result.Status,
		}
		if _, err := p.db.InsertNetworkQuality(ctx, rec); err != nil {
			p.logger.WithError(err).WithField("target", target.Host).Error("failed to persist network quality result")
		}
	}
}

// pingWithRetry runs PingHost once, and retries a single time through
// internal/retry.Backoff when the first attempt sees 100% loss — a common
// symptom of a transient spawn hiccup rather than a genuinely dead target.
func (p *NetworkProber) pingWithRetry(ctx context.Context, target PingTarget) PingResult {
	result := PingHost(ctx, target.Host, p.pingCount, p.timeout)
	if result.Status != models.QualityStatusDown {
		return result
	}

	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  1,
	})

	_ = backoff.Retry(ctx, func() error {
		result = PingHost(ctx, target.Host, p.pingCount, p.timeout)
		if result.Status == models.QualityStatusDown {
			return fmt.Errorf("ping %s failed", target.Host)
		}
		return nil
	})

	return result
}

// PingResult is the derived outcome of pinging one target N times.
type PingResult struct {
	LatencyMs         *float64
	JitterMs          *float64
	PacketLossPercent float64
	Status            string
}

// PingHost spawns the OS ping utility and parses its output for RTTs and
// transmit/receive counts using platform-specific textual patterns.
func PingHost(ctx context.Context, host string, count int, perEchoTimeout time.Duration) PingResult {
	name, args := pingCommand(host, count, perEchoTimeout)

	cctx, cancel := context.WithTimeout(ctx, perEchoTimeout*time.Duration(count)+5*time.Second)
	defer cancel()

	out, _ := exec.CommandContext(cctx, name, args...).CombinedOutput()
	output := string(out)

	rtts := parseRTTs(output)
	sent, received := parseTransmitCounts(output, count)

	loss := 100.0
	if sent > 0 {
		loss = (float64(sent-received) / float64(sent)) * 100
		if loss < 0 {
			loss = 0
		}
	}

	if len(rtts) == 0 {
		return PingResult{PacketLossPercent: 100, Status: models.QualityStatusDown}
	}

	mean := meanOf(rtts)
	jitter := meanAbsoluteDeviation(rtts, mean)

	return PingResult{
		LatencyMs:         &mean,
		JitterMs:          &jitter,
		PacketLossPercent: loss,
		Status:            models.QualityStatusOK,
	}
}

func pingCommand(host string, count int, timeout time.Duration) (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "ping", []string{"-n", strconv.Itoa(count), "-w", strconv.Itoa(int(timeout.Milliseconds())), host}
	case "darwin":
		return "ping", []string{"-c", strconv.Itoa(count), "-W", strconv.Itoa(int(timeout.Milliseconds())), host}
	default:
		return "ping", []string{"-c", strconv.Itoa(count), "-W", fmt.Sprintf("%.0f", timeout.Seconds()), host}
	}
}

func parseRTTs(output string) []float64 {
	pattern := rttPatternLinux
	if runtime.GOOS == "windows" {
		pattern = rttPatternWindows
	}
	matches := pattern.FindAllStringSubmatch(output, -1)
	rtts := make([]float64, 0, len(matches))
	for _, m := range matches {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			rtts = append(rtts, f)
		}
	}
	return rtts
}

func parseTransmitCounts(output string, requested int) (sent, received int) {
	pattern := transmitPatternUnix
	if runtime.GOOS == "windows" {
		pattern = transmitPatternWindows
	}
	m := pattern.FindStringSubmatch(output)
	if len(m) == 3 {
		s, _ := strconv.Atoi(m[1])
		r, _ := strconv.Atoi(m[2])
		return s, r
	}
	return requested, 0
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nullableIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func meanAbsoluteDeviation(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - mean)
	}
	return sum / float64(len(values))
}
