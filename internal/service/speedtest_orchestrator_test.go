package service

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "gatewaymon/internal/errors"
	"gatewaymon/internal/models"
	"gatewaymon/pkg/speedtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrchestrator builds an orchestrator without going through
// NewSpeedtestOrchestrator, so tests never shell out or hit the network to
// detect real CLI tools.
func newTestOrchestrator(cfg SpeedtestOrchestratorConfig, tools ...*speedtest.Tool) *SpeedtestOrchestrator {
	o := &SpeedtestOrchestrator{
		cfg:       cfg,
		tools:     make(map[string]*speedtest.Tool, len(tools)),
		available: make(map[string]bool, len(tools)),
	}
	for _, t := range tools {
		o.tools[t.Name] = t
		o.toolOrder = append(o.toolOrder, t.Name)
		o.available[t.Name] = true
	}
	o.logger = nil
	return o
}

func fakeTool(name string, measure func(ctx context.Context) speedtest.Result) *speedtest.Tool {
	return &speedtest.Tool{
		Name:    name,
		Detect:  func(ctx context.Context) bool { return true },
		Measure: measure,
	}
}

func TestSelectTool_RequestedUnavailable(t *testing.T) {
	o := newTestOrchestrator(SpeedtestOrchestratorConfig{}, fakeTool("fast-cli", nil))
	o.available["fast-cli"] = false

	_, _, err := o.selectTool("fast-cli")
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoTool, apperrors.GetCode(err))
}

func TestSelectTool_FallsBackToFirstAvailable(t *testing.T) {
	o := newTestOrchestrator(SpeedtestOrchestratorConfig{}, fakeTool("fast-cli", nil), fakeTool("speedtest-cli", nil))
	o.available["fast-cli"] = false

	tool, name, err := o.selectTool("")
	require.NoError(t, err)
	assert.Equal(t, "speedtest-cli", name)
	assert.Equal(t, "speedtest-cli", tool.Name)
}

func TestSelectTool_NoneAvailable(t *testing.T) {
	o := newTestOrchestrator(SpeedtestOrchestratorConfig{})
	_, _, err := o.selectTool("")
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoTool, apperrors.GetCode(err))
}

func TestInferNetworkContext_IdleHoursOverride(t *testing.T) {
	cfg := SpeedtestOrchestratorConfig{IdleHours: map[int]bool{time.Now().Hour(): true}}
	o := newTestOrchestrator(cfg)

	ctxLabel, latency := o.inferNetworkContext(context.Background())
	assert.Equal(t, models.NetworkContextBaseline, ctxLabel)
	assert.Nil(t, latency)
}

func TestInferNetworkContext_ProbeDisabled(t *testing.T) {
	cfg := SpeedtestOrchestratorConfig{LatencyProbeDisabled: true}
	o := newTestOrchestrator(cfg)

	ctxLabel, latency := o.inferNetworkContext(context.Background())
	assert.Equal(t, models.NetworkContextUnknown, ctxLabel)
	assert.Nil(t, latency)
}

func TestRunSpeedtest_SuccessIsPersistedWithoutDB(t *testing.T) {
	o := newTestOrchestrator(
		SpeedtestOrchestratorConfig{LatencyProbeDisabled: true},
		fakeTool("fast-cli", func(ctx context.Context) speedtest.Result {
			return speedtest.Result{Status: models.SpeedtestStatusSuccess, DownloadMbps: 150, UploadMbps: 20}
		}),
	)

	result := o.RunSpeedtest(context.Background(), RunOptions{TriggeredBy: models.TriggeredByManual})
	require.NotNil(t, result)
	assert.Equal(t, models.SpeedtestStatusSuccess, result.Status)
	assert.Equal(t, "fast-cli", result.Tool)
	assert.InDelta(t, 150, result.DownloadMbps, 0.0001)
	assert.Equal(t, models.NetworkContextUnknown, result.NetworkContext)
}

func TestRunSpeedtest_NoToolAvailableReturnsError(t *testing.T) {
	o := newTestOrchestrator(SpeedtestOrchestratorConfig{LatencyProbeDisabled: true})

	result := o.RunSpeedtest(context.Background(), RunOptions{})
	require.NotNil(t, result)
	assert.Equal(t, models.SpeedtestStatusError, result.Status)
	require.NotNil(t, result.ErrorMessage)
}

func TestRunSpeedtest_ConcurrentCallReturnsBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	o := newTestOrchestrator(
		SpeedtestOrchestratorConfig{LatencyProbeDisabled: true},
		fakeTool("fast-cli", func(ctx context.Context) speedtest.Result {
			close(started)
			<-release
			return speedtest.Result{Status: models.SpeedtestStatusSuccess, DownloadMbps: 1}
		}),
	)

	var wg sync.WaitGroup
	var first, second *models.SpeedtestResult

	wg.Add(1)
	go func() {
		defer wg.Done()
		first = o.RunSpeedtest(context.Background(), RunOptions{})
	}()

	<-started
	second = o.RunSpeedtest(context.Background(), RunOptions{})
	close(release)
	wg.Wait()

	assert.Equal(t, models.SpeedtestStatusBusy, second.Status)
	assert.Equal(t, models.SpeedtestStatusSuccess, first.Status)
}
