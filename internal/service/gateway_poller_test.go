package service

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"gatewaymon/internal/models"
	"gatewaymon/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientAgainst(t *testing.T, srv *httptest.Server) *gateway.Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return gateway.NewClient(host, port, 2*time.Second)
}

const gatewayPayload = `{"signal":{"5g":{"sinr":20,"rsrp":-80,"bands":["n41"],"gNBID":"g1"},"4g":{"sinr":15}},"device":{"connectionStatus":"connected"}}`

func TestPollOnce_SuccessPublishesAndRecordsStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gatewayPayload))
	}))
	defer srv.Close()

	p := NewGatewayPoller(clientAgainst(t, srv), nil, models.GatewayConfig{TimeoutSeconds: 2, FailureThreshold: 3, RecoveryTimeoutSeconds: 5}, nil)
	ch, unsub := p.Subscribe()
	defer unsub()

	sample, err := p.PollOnce()
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.InDelta(t, 20, *sample.NRSinr, 0.0001)

	select {
	case published := <-ch:
		assert.InDelta(t, 20, *published.NRSinr, 0.0001)
	case <-time.After(time.Second):
		t.Fatal("expected the sample to be published on the signal bus")
	}

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(0), stats.ErrorCount)
	assert.NotNil(t, p.CurrentData())
}

func TestPollOnce_FailurePublishesOutageAfterThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewGatewayPoller(clientAgainst(t, srv), nil, models.GatewayConfig{TimeoutSeconds: 2, FailureThreshold: 2, RecoveryTimeoutSeconds: 5}, nil)
	outages, unsub := p.SubscribeOutages()
	defer unsub()

	_, err1 := p.PollOnce()
	assert.Error(t, err1)
	_, err2 := p.PollOnce()
	assert.Error(t, err2)

	select {
	case ev := <-outages:
		assert.False(t, ev.Resolved)
	case <-time.After(time.Second):
		t.Fatal("expected an outage-opened event once the breaker trips")
	}

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.ErrorCount)
	assert.NotEmpty(t, stats.LastError)
}

func TestOutageSuccess_ResolvesAfterOpen(t *testing.T) {
	p := NewGatewayPoller(nil, nil, models.GatewayConfig{FailureThreshold: 1, RecoveryTimeoutSeconds: 5}, nil)
	outages, unsub := p.SubscribeOutages()
	defer unsub()

	p.outageMu.Lock()
	p.outageActive = true
	p.outageStart = time.Now().Add(-time.Second)
	p.outageMu.Unlock()

	p.onOutageSuccess()

	select {
	case ev := <-outages:
		assert.True(t, ev.Resolved)
		assert.Greater(t, ev.DurationSeconds, 0.0)
	case <-time.After(time.Second):
		t.Fatal("expected an outage-resolved event")
	}

	p.outageMu.Lock()
	active := p.outageActive
	p.outageMu.Unlock()
	assert.False(t, active)
}

func TestOutageSuccess_NoopWhenNoOutageActive(t *testing.T) {
	p := NewGatewayPoller(nil, nil, models.GatewayConfig{}, nil)
	p.onOutageSuccess()
}

func TestEnqueueAndFlushBatch_NoopWithoutDB(t *testing.T) {
	p := NewGatewayPoller(nil, nil, models.GatewayConfig{}, nil)
	p.enqueueBatch(models.SignalSample{})
	p.enqueueBatch(models.SignalSample{})

	p.batchMu.Lock()
	queued := len(p.batchQueue)
	p.batchMu.Unlock()
	assert.Equal(t, 2, queued)

	p.flushBatch(context.Background())

	p.batchMu.Lock()
	remaining := len(p.batchQueue)
	p.batchMu.Unlock()
	assert.Equal(t, 0, remaining, "flush should drain the queue even when there is no db to persist to")
}

func TestStartStopPolling_IsIdempotentAndFlushesOnStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gatewayPayload))
	}))
	defer srv.Close()

	p := NewGatewayPoller(clientAgainst(t, srv), nil, models.GatewayConfig{PollIntervalMs: 20, TimeoutSeconds: 2, FailureThreshold: 3, RecoveryTimeoutSeconds: 5}, nil)

	p.StartPolling()
	p.StartPolling() // second call must be a no-op, not a panic on double-close

	time.Sleep(80 * time.Millisecond)
	assert.Greater(t, p.Stats().SuccessCount, int64(0))

	p.StopPolling()
	p.StopPolling() // likewise idempotent
}
