package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"gatewaymon/internal/database"
	apperrors "gatewaymon/internal/errors"
	"gatewaymon/internal/models"
	"gatewaymon/internal/retry"
	"gatewaymon/pkg/speedtest"

	"github.com/sirupsen/logrus"
)

// SpeedtestOrchestratorConfig carries the tunables for tool selection and
// network-context inference.
type SpeedtestOrchestratorConfig struct {
	PreferenceOrder       []string
	IdleHours             map[int]bool
	BaselineLatencyMs     float64
	LightLatencyMultiplier float64
	BusyLatencyMultiplier  float64
	LatencyProbeTarget     string
	LatencyProbeDisabled   bool
}

// DefaultSpeedtestOrchestratorConfig mirrors the default preference list and
// network-context multipliers called for by §4.5.
func DefaultSpeedtestOrchestratorConfig() SpeedtestOrchestratorConfig {
	return SpeedtestOrchestratorConfig{
		PreferenceOrder:        []string{"fast-cli", "speedtest-cli", "librespeed-cli"},
		IdleHours:              map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true},
		BaselineLatencyMs:      20,
		LightLatencyMultiplier: 1.5,
		BusyLatencyMultiplier:  3.0,
		LatencyProbeTarget:     "1.1.1.1",
	}
}

// RunOptions parameterize one RunSpeedtest invocation.
type RunOptions struct {
	ToolName       string
	TriggeredBy    string
	SignalSnapshot *models.SignalSample
	NetworkContext string // override; empty means infer
}

// SpeedtestOrchestrator multiplexes several speed-test tools behind a
// single-flight guard, tags each run with a network-context label, and
// persists every outcome including busy/failure statuses.
type SpeedtestOrchestrator struct {
	db     *database.Database
	cfg    SpeedtestOrchestratorConfig
	logger *logrus.Logger

	tools     map[string]*speedtest.Tool
	available map[string]bool
	toolOrder []string

	running int32
}

// NewSpeedtestOrchestrator registers the supported tools and probes each
// for availability (short version/help command, ≤10s deadline per tool).
func NewSpeedtestOrchestrator(ctx context.Context, db *database.Database, cfg SpeedtestOrchestratorConfig, ooklaServerID string, logger *logrus.Logger) *SpeedtestOrchestrator {
	if logger == nil {
		logger = logrus.New()
	}

	tools := []*speedtest.Tool{
		speedtest.NewFastCLITool(),
		speedtest.NewOoklaCLITool(ooklaServerID),
		speedtest.NewLibreSpeedCLITool(),
		speedtest.NewCDNProbe("cloudflare-cdn", "Cloudflare", "https://speed.cloudflare.com/__down?bytes=25000000"),
		speedtest.NewCDNProbe("fastly-cdn", "Fastly", "https://www.fastly.com/speedtest"),
		speedtest.NewCDNProbe("google-cdn", "Google", "https://www.google.com/generate_204"),
	}

	o := &SpeedtestOrchestrator{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		tools:     make(map[string]*speedtest.Tool, len(tools)),
		available: make(map[string]bool, len(tools)),
	}

	detectBackoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  2,
	})

	for _, t := range tools {
		o.tools[t.Name] = t
		o.toolOrder = append(o.toolOrder, t.Name)

		var detected bool
		_ = detectBackoff.Retry(ctx, func() error {
			detectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if detected = t.Detect(detectCtx); !detected {
				return fmt.Errorf("tool %s not detected", t.Name)
			}
			return nil
		})
		o.available[t.Name] = detected
	}

	return o
}

// AvailableTools returns the names of tools detected at construction time.
func (o *SpeedtestOrchestrator) AvailableTools() []string {
	var out []string
	for _, name := range o.toolOrder {
		if o.available[name] {
			out = append(out, name)
		}
	}
	return out
}

// RunSpeedtest executes at most one tool at a time. A concurrent call while
// one is already running returns a synthetic "busy" result without spawning
// anything.
func (o *SpeedtestOrchestrator) RunSpeedtest(ctx context.Context, opts RunOptions) *models.SpeedtestResult {
	if !atomic.CompareAndSwapInt32(&o.running, 0, 1) {
		return o.persist(ctx, opts, speedtest.Result{Status: models.SpeedtestStatusBusy, ErrorMessage: "a speed test is already running"}, "", "", nil)
	}
	defer atomic.StoreInt32(&o.running, 0)

	tool, name, err := o.selectTool(opts.ToolName)
	if err != nil {
		return o.persist(ctx, opts, speedtest.Result{Status: models.SpeedtestStatusError, ErrorMessage: err.Error()}, "", "", nil)
	}

	networkContext, preTestLatencyMs := opts.NetworkContext, (*float64)(nil)
	if networkContext == "" {
		networkContext, preTestLatencyMs = o.inferNetworkContext(ctx)
	}

	result := tool.Measure(ctx)
	return o.persist(ctx, opts, result, networkContext, name, preTestLatencyMs)
}

func (o *SpeedtestOrchestrator) selectTool(requested string) (*speedtest.Tool, string, error) {
	if requested != "" {
		if o.available[requested] {
			return o.tools[requested], requested, nil
		}
		return nil, "", apperrors.New(apperrors.ErrCodeNoTool, fmt.Sprintf("requested tool %q is not available", requested))
	}
	for _, name := range o.cfg.PreferenceOrder {
		if o.available[name] {
			return o.tools[name], name, nil
		}
	}
	for _, name := range o.toolOrder {
		if o.available[name] {
			return o.tools[name], name, nil
		}
	}
	return nil, "", apperrors.New(apperrors.ErrCodeNoTool, "no speed test tool is available")
}

// inferNetworkContext implements §4.5's baseline/idle/light/busy/unknown
// labelling: idle-hours override first, then a pre-test latency probe
// compared against the baseline.
func (o *SpeedtestOrchestrator) inferNetworkContext(ctx context.Context) (string, *float64) {
	if o.cfg.LatencyProbeDisabled {
		return models.NetworkContextUnknown, nil
	}
	if o.cfg.IdleHours[time.Now().Hour()] {
		return models.NetworkContextBaseline, nil
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	probe := PingHost(pctx, o.cfg.LatencyProbeTarget, 3, 2*time.Second)
	if probe.LatencyMs == nil {
		return models.NetworkContextUnknown, nil
	}

	ratio := *probe.LatencyMs / o.cfg.BaselineLatencyMs
	switch {
	case ratio < o.cfg.LightLatencyMultiplier:
		return models.NetworkContextIdle, probe.LatencyMs
	case ratio < o.cfg.BusyLatencyMultiplier:
		return models.NetworkContextLight, probe.LatencyMs
	default:
		return models.NetworkContextBusy, probe.LatencyMs
	}
}

func (o *SpeedtestOrchestrator) persist(ctx context.Context, opts RunOptions, r speedtest.Result, networkContext, name string, preTestLatencyMs *float64) *models.SpeedtestResult {
	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.TriggeredByManual
	}
	if networkContext == "" {
		networkContext = models.NetworkContextUnknown
	}

	now := time.Now().UTC()
	rec := &models.SpeedtestResult{
		Timestamp:      now.Format(time.RFC3339),
		TimestampUnix:  float64(now.Unix()),
		Tool:           name,
		Status:         r.Status,
		TriggeredBy:    triggeredBy,
		NetworkContext: networkContext,
		PreTestLatencyMs: preTestLatencyMs,
	}

	if r.Status == models.SpeedtestStatusSuccess {
		rec.DownloadMbps = r.DownloadMbps
		rec.UploadMbps = r.UploadMbps
		rec.PingMs = r.PingMs
		rec.JitterMs = r.JitterMs
		rec.PacketLossPercent = r.PacketLossPercent
		if r.ServerName != "" {
			rec.ServerName = &r.ServerName
		}
		if r.ServerHost != "" {
			rec.ServerHost = &r.ServerHost
		}
	} else {
		msg := r.ErrorMessage
		rec.ErrorMessage = &msg
	}

	if opts.SignalSnapshot != nil {
		if b, err := json.Marshal(opts.SignalSnapshot); err == nil {
			s := string(b)
			rec.SignalSnapshot = &s
		}
	}

	if o.db != nil {
		if _, err := o.db.InsertSpeedtest(ctx, rec); err != nil {
			o.logger.WithError(err).Error("failed to persist speedtest result")
		}
	}

	return rec
}
