package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatewaymon/internal/database"
	"gatewaymon/internal/errors"
	"gatewaymon/internal/models"
	"gatewaymon/pkg/circuitbreaker"
	"gatewaymon/pkg/gateway"

	"github.com/sirupsen/logrus"
)

// GatewayPoller periodically fetches signal samples from the gateway,
// tracks circuit-breaker and outage state, and persists samples through a
// batched write path. It is the heartbeat of the system: the disruption
// detector and alert engine both react to what it publishes.
type GatewayPoller struct {
	client    *gateway.Client
	db        *database.Database
	cb        *circuitbreaker.CircuitBreaker
	cfg       models.GatewayConfig
	logger    *logrus.Logger
	errLogger *errors.Logger

	signalBus *EventBus[models.SignalSample]
	outageBus *EventBus[OutageEvent]

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	loopDone      chan struct{}
	successCount  int64
	errorCount    int64
	lastSuccess   time.Time
	lastAttempt   time.Time
	lastError     string
	currentSample *models.SignalSample
	prevSample    *models.SignalSample

	outageMu      sync.Mutex
	outageActive  bool
	outageStart   time.Time
	outageDisrID  int64
	outageFailCnt int

	batchMu       sync.Mutex
	batchQueue    []models.SignalSample
	batchStopCh   chan struct{}
	batchDone     chan struct{}
	batchInterval time.Duration
}

// NewGatewayPoller wires a poller against its gateway client and storage.
func NewGatewayPoller(client *gateway.Client, db *database.Database, cfg models.GatewayConfig, logger *logrus.Logger) *GatewayPoller {
	if logger == nil {
		logger = logrus.New()
	}
	return &GatewayPoller{
		client:        client,
		db:            db,
		cfg:           cfg,
		logger:        logger,
		errLogger:     errors.NewLoggerWith(logger),
		cb:            circuitbreaker.New("gateway", uint32(cfg.FailureThreshold), time.Duration(cfg.RecoveryTimeoutSeconds)*time.Second),
		signalBus:     NewEventBus[models.SignalSample](0),
		outageBus:     NewEventBus[OutageEvent](0),
		batchInterval: 5 * time.Second,
	}
}

// Subscribe returns a live stream of decoded samples.
func (p *GatewayPoller) Subscribe() (<-chan models.SignalSample, func()) {
	return p.signalBus.Subscribe()
}

// SubscribeOutages returns a live stream of outage lifecycle events.
func (p *GatewayPoller) SubscribeOutages() (<-chan OutageEvent, func()) {
	return p.outageBus.Subscribe()
}

// StartPolling begins the background poll loop and batch writer. Idempotent.
func (p *GatewayPoller) StartPolling() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.loopDone = make(chan struct{})
	p.mu.Unlock()

	p.batchMu.Lock()
	p.batchStopCh = make(chan struct{})
	p.batchDone = make(chan struct{})
	p.batchMu.Unlock()

	go p.batchLoop()
	go p.pollLoop()
}

// StopPolling interrupts the poll loop and batch writer, performing a final
// synchronous flush before returning. Idempotent.
func (p *GatewayPoller) StopPolling() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	loopDone := p.loopDone
	p.mu.Unlock()

	close(stopCh)
	<-loopDone

	p.batchMu.Lock()
	batchStopCh := p.batchStopCh
	batchDone := p.batchDone
	p.batchMu.Unlock()
	close(batchStopCh)
	<-batchDone

	p.flushBatch(context.Background())
}

func (p *GatewayPoller) pollLoop() {
	defer close(p.loopDone)

	interval := time.Duration(p.cfg.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			_, _ = p.PollOnce()
		}
	}
}

// PollOnce performs a single poll synchronously on the calling goroutine,
// honored even while the background loop is running. The loop's own polls
// never overlap each other, since the loop waits for each poll to return;
// a PollOnce call from another goroutine is not serialized against them.
func (p *GatewayPoller) PollOnce() (*models.SignalSample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	p.mu.Lock()
	p.lastAttempt = time.Now()
	p.mu.Unlock()

	var sample *models.SignalSample
	cbErr := p.cb.Execute(ctx, func(ctx context.Context) error {
		s, err := p.client.FetchSignal(ctx)
		if err != nil {
			return err
		}
		sample = s
		return nil
	})

	if cbErr != nil {
		p.recordFailure(cbErr)
		return nil, cbErr
	}

	p.recordSuccess(sample)
	return sample, nil
}

func (p *GatewayPoller) recordFailure(err error) {
	p.mu.Lock()
	p.errorCount++
	p.lastError = err.Error()
	p.mu.Unlock()

	p.errLogger.LogRetryableError(err, fmt.Sprintf("[%s] gateway poll failed", errors.GetCode(err)), logrus.Fields{"component": "gateway_poller"})

	p.onOutageFailure()
}

func (p *GatewayPoller) recordSuccess(sample *models.SignalSample) {
	p.mu.Lock()
	p.successCount++
	p.lastSuccess = time.Now()
	prev := p.prevSample
	p.prevSample = sample
	p.currentSample = sample
	p.mu.Unlock()

	if prev != nil {
		p.logSinrDrop(prev, sample)
	}

	p.onOutageSuccess()

	p.signalBus.Publish(*sample)
	p.enqueueBatch(*sample)
}

func (p *GatewayPoller) logSinrDrop(prev, curr *models.SignalSample) {
	threshold := p.cfg.SinrDropThresholdDB
	if threshold <= 0 {
		return
	}
	if prev.NRSinr != nil && curr.NRSinr != nil {
		if drop := *prev.NRSinr - *curr.NRSinr; drop >= threshold {
			p.logger.WithFields(logrus.Fields{"radio": "5g", "drop_db": drop}).Warn("sinr drop exceeded threshold")
		}
	}
	if prev.LTESinr != nil && curr.LTESinr != nil {
		if drop := *prev.LTESinr - *curr.LTESinr; drop >= threshold {
			p.logger.WithFields(logrus.Fields{"radio": "4g", "drop_db": drop}).Warn("sinr drop exceeded threshold")
		}
	}
}

// onOutageFailure opens the outage on the closed->open transition and
// accumulates the failure count while the outage stays open.
func (p *GatewayPoller) onOutageFailure() {
	p.outageMu.Lock()
	defer p.outageMu.Unlock()

	if p.cb.GetState() != circuitbreaker.StateOpen {
		return
	}
	if p.outageActive {
		p.outageFailCnt++
		return
	}

	p.outageActive = true
	p.outageStart = time.Now()
	p.outageFailCnt = 1

	p.outageBus.Publish(OutageEvent{Resolved: false, StartedAt: p.outageStart})

	if p.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ev := &models.DisruptionEvent{
			Timestamp:     p.outageStart.UTC().Format(time.RFC3339),
			TimestampUnix: float64(p.outageStart.Unix()),
			EventType:     models.EventGatewayUnreachable,
			Severity:      models.SeverityCritical,
			Description:   "gateway became unreachable",
			Resolved:      false,
		}
		id, err := p.db.InsertDisruption(ctx, ev)
		if err != nil {
			p.logger.WithError(err).Error("failed to persist gateway_unreachable disruption")
			return
		}
		p.outageDisrID = id
	}
}

// onOutageSuccess closes an active outage on any successful poll.
func (p *GatewayPoller) onOutageSuccess() {
	p.outageMu.Lock()
	defer p.outageMu.Unlock()

	if !p.outageActive {
		return
	}

	ended := time.Now()
	duration := ended.Sub(p.outageStart)
	p.outageActive = false

	p.outageBus.Publish(OutageEvent{
		Resolved:        true,
		StartedAt:       p.outageStart,
		EndedAt:         ended,
		DurationSeconds: duration.Seconds(),
	})

	if p.db != nil && p.outageDisrID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		afterState := fmt.Sprintf(`{"failed_polls":%d}`, p.outageFailCnt)
		if err := p.db.ResolveDisruption(ctx, p.outageDisrID, int64(duration.Seconds()), ended.UTC().Format(time.RFC3339), afterState); err != nil {
			p.logger.WithError(err).Error("failed to resolve gateway_unreachable disruption")
		}
	}
	p.outageDisrID = 0
	p.outageFailCnt = 0
}

func (p *GatewayPoller) enqueueBatch(sample models.SignalSample) {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()
	p.batchQueue = append(p.batchQueue, sample)
}

func (p *GatewayPoller) batchLoop() {
	defer close(p.batchDone)

	ticker := time.NewTicker(p.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.batchStopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.flushBatch(ctx)
			cancel()
		}
	}
}

func (p *GatewayPoller) flushBatch(ctx context.Context) {
	p.batchMu.Lock()
	drained := p.batchQueue
	p.batchQueue = nil
	p.batchMu.Unlock()

	if len(drained) == 0 || p.db == nil {
		return
	}

	if _, err := p.db.InsertSignalHistory(ctx, drained); err != nil {
		p.logger.WithError(err).WithField("lost_records", len(drained)).Error("batch insert failed, records lost")
	}
}

// CurrentData returns the most recently decoded sample, if any.
func (p *GatewayPoller) CurrentData() *models.SignalSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSample
}

// CurrentRaw returns the raw JSON body behind the most recently decoded
// sample, if any.
func (p *GatewayPoller) CurrentRaw() []byte {
	return p.client.LastRaw()
}

// Stats reports the poller's running counters and circuit state.
func (p *GatewayPoller) Stats() PollStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PollStats{
		Running:      p.running,
		SuccessCount: p.successCount,
		ErrorCount:   p.errorCount,
		LastSuccess:  p.lastSuccess,
		LastAttempt:  p.lastAttempt,
		LastError:    p.lastError,
		CircuitState: p.cb.GetState().String(),
	}
}
