package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gatewaymon/internal/constants"
	"gatewaymon/internal/database"
	"gatewaymon/internal/models"

	"github.com/sirupsen/logrus"
)

// DisruptionDetectorConfig carries the thresholds driving each detector row.
type DisruptionDetectorConfig struct {
	SinrDrop5gDB      float64
	SinrDrop4gDB      float64
	CooldownSeconds   int64
}

// DefaultDisruptionDetectorConfig returns the glossary's stated defaults.
func DefaultDisruptionDetectorConfig() DisruptionDetectorConfig {
	return DisruptionDetectorConfig{
		SinrDrop5gDB:    constants.DefaultSignalDropThresholdDB,
		SinrDrop4gDB:    constants.DefaultSignalDropThresholdDB,
		CooldownSeconds: 60,
	}
}

// DisruptionDetector compares adjacent sample pairs and persists typed
// events, subject to a per-event-type cooldown. It runs strictly
// sequentially over one sample stream — concurrency=1 — so cooldown updates
// never interleave.
type DisruptionDetector struct {
	db     *database.Database
	cfg    DisruptionDetectorConfig
	logger *logrus.Logger

	mu       sync.Mutex
	prev     *models.SignalSample
	cooldown models.Cooldown
}

// NewDisruptionDetector constructs a detector bound to a storage target.
func NewDisruptionDetector(db *database.Database, cfg DisruptionDetectorConfig, logger *logrus.Logger) *DisruptionDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &DisruptionDetector{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		cooldown: make(models.Cooldown),
	}
}

// Run consumes samples from ch until it closes, feeding each adjacent pair
// through the detector table. Intended to be driven by a poller subscription.
func (d *DisruptionDetector) Run(ctx context.Context, ch <-chan models.SignalSample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-ch:
			if !ok {
				return
			}
			d.Observe(ctx, sample)
		}
	}
}

// Observe feeds one new sample through the detector table against the
// previously observed sample.
func (d *DisruptionDetector) Observe(ctx context.Context, curr models.SignalSample) {
	d.mu.Lock()
	prev := d.prev
	d.prev = &curr
	d.mu.Unlock()

	if prev == nil {
		return
	}

	for _, ev := range d.evaluate(*prev, curr) {
		d.fire(ctx, ev)
	}
}

type detectedEvent struct {
	eventType   string
	severity    string
	description string
	before      map[string]interface{}
	after       map[string]interface{}
}

func (d *DisruptionDetector) evaluate(prev, curr models.SignalSample) []detectedEvent {
	var events []detectedEvent

	if prev.NRSinr != nil && curr.NRSinr != nil {
		if drop := *prev.NRSinr - *curr.NRSinr; drop >= d.cfg.SinrDrop5gDB {
			sev := models.SeverityWarning
			if drop >= 20 {
				sev = models.SeverityCritical
			}
			events = append(events, detectedEvent{
				eventType:   models.EventSignalDrop5G,
				severity:    sev,
				description: fmt.Sprintf("5g sinr dropped %.1f dB", drop),
				before:      map[string]interface{}{"nr_sinr": *prev.NRSinr},
				after:       map[string]interface{}{"nr_sinr": *curr.NRSinr},
			})
		}
	}

	if prev.LTESinr != nil && curr.LTESinr != nil {
		if drop := *prev.LTESinr - *curr.LTESinr; drop >= d.cfg.SinrDrop4gDB {
			events = append(events, detectedEvent{
				eventType:   models.EventSignalDrop4G,
				severity:    models.SeverityWarning,
				description: fmt.Sprintf("4g sinr dropped %.1f dB", drop),
				before:      map[string]interface{}{"lte_sinr": *prev.LTESinr},
				after:       map[string]interface{}{"lte_sinr": *curr.LTESinr},
			})
		}
	}

	if prev.NRGnbID != nil && curr.NRGnbID != nil && *prev.NRGnbID != *curr.NRGnbID {
		events = append(events, detectedEvent{
			eventType:   models.EventTowerChange5G,
			severity:    models.SeverityInfo,
			description: "5g tower changed",
			before:      map[string]interface{}{"nr_gnb_id": *prev.NRGnbID},
			after:       map[string]interface{}{"nr_gnb_id": *curr.NRGnbID},
		})
	}

	if prev.LTEEnbID != nil && curr.LTEEnbID != nil && *prev.LTEEnbID != *curr.LTEEnbID {
		events = append(events, detectedEvent{
			eventType:   models.EventTowerChange4G,
			severity:    models.SeverityInfo,
			description: "4g tower changed",
			before:      map[string]interface{}{"lte_enb_id": *prev.LTEEnbID},
			after:       map[string]interface{}{"lte_enb_id": *curr.LTEEnbID},
		})
	}

	if prev.NRBands != nil && curr.NRBands != nil && *prev.NRBands != *curr.NRBands {
		events = append(events, detectedEvent{
			eventType:   models.EventBandSwitch5G,
			severity:    models.SeverityInfo,
			description: "5g band set changed",
			before:      map[string]interface{}{"nr_bands": *prev.NRBands},
			after:       map[string]interface{}{"nr_bands": *curr.NRBands},
		})
	}

	if prev.LTEBands != nil && curr.LTEBands != nil && *prev.LTEBands != *curr.LTEBands {
		events = append(events, detectedEvent{
			eventType:   models.EventBandSwitch4G,
			severity:    models.SeverityInfo,
			description: "4g band set changed",
			before:      map[string]interface{}{"lte_bands": *prev.LTEBands},
			after:       map[string]interface{}{"lte_bands": *curr.LTEBands},
		})
	}

	prevMode := prev.ConnectionMode()
	currMode := curr.ConnectionMode()
	if prevMode != currMode {
		sev := models.SeverityInfo
		switch {
		case currMode == "No Signal":
			sev = models.SeverityCritical
		case prevMode == "SA" && currMode == "LTE":
			sev = models.SeverityWarning
		case prevMode == "NSA" && currMode == "LTE":
			sev = models.SeverityWarning
		}
		events = append(events, detectedEvent{
			eventType:   models.EventConnectionModeChange,
			severity:    sev,
			description: fmt.Sprintf("connection mode changed from %s to %s", prevMode, currMode),
			before:      map[string]interface{}{"mode": prevMode},
			after:       map[string]interface{}{"mode": currMode},
		})
	}

	return events
}

func (d *DisruptionDetector) fire(ctx context.Context, ev detectedEvent) {
	d.mu.Lock()
	last, seen := d.cooldown[ev.eventType]
	now := time.Now().Unix()
	if seen && now-last < d.cfg.CooldownSeconds {
		d.mu.Unlock()
		return
	}
	d.cooldown[ev.eventType] = now
	d.mu.Unlock()

	if d.db == nil {
		return
	}

	beforeJSON, _ := json.Marshal(ev.before)
	afterJSON, _ := json.Marshal(ev.after)
	beforeStr := string(beforeJSON)
	afterStr := string(afterJSON)

	record := &models.DisruptionEvent{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TimestampUnix: float64(now),
		EventType:     ev.eventType,
		Severity:      ev.severity,
		Description:   ev.description,
		BeforeState:   &beforeStr,
		AfterState:    &afterStr,
		Resolved:      false,
	}

	if _, err := d.db.InsertDisruption(ctx, record); err != nil {
		d.logger.WithError(err).WithField("event_type", ev.eventType).Error("failed to persist disruption event")
	}
}
