package service

import (
	"fmt"
	"sync/atomic"
	"time"

	"gatewaymon/internal/models"

	"github.com/sirupsen/logrus"
)

// AlertEngine evaluates the latest signal and speedtest snapshots against a
// threshold policy and fans out Alert objects to subscribers. All state
// (active map, history, cooldowns) is owned by a single goroutine reached
// through a command channel, avoiding a mutex-guarded map and its reentrancy
// hazards.
type AlertEngine struct {
	cfg    models.AlertConfig
	logger *logrus.Logger

	bus *EventBus[AlertEvent]

	commands chan alertCommand
	counter  int64
}

// AlertEvent is what the alert bus fans out: a created alert, a clearance of
// one alert-type, or a bulk clear of every active alert.
type AlertEvent struct {
	Kind       string        `json:"kind"` // "alert" | "alert_cleared" | "all_alerts_cleared"
	Alert      *models.Alert `json:"alert,omitempty"`
	AlertType  string        `json:"alert_type,omitempty"`
	AlertID    string        `json:"alert_id,omitempty"`
	ClearCount int           `json:"clear_count,omitempty"`
}

type alertCommand struct {
	kind  string
	alert *models.Alert
	id    string
	reply chan any
}

// NewAlertEngine starts the engine's owning goroutine and returns a handle.
func NewAlertEngine(cfg models.AlertConfig, logger *logrus.Logger) *AlertEngine {
	if logger == nil {
		logger = logrus.New()
	}
	e := &AlertEngine{
		cfg:      cfg,
		logger:   logger,
		bus:      NewEventBus[AlertEvent](0),
		commands: make(chan alertCommand, 32),
	}
	go e.run()
	return e
}

func (e *AlertEngine) run() {
	active := make(map[string]*models.Alert)
	history := make([]*models.Alert, 0, 1024)
	cooldown := make(models.Cooldown)

	for cmd := range e.commands {
		switch cmd.kind {
		case "evaluate":
			e.tryFire(cmd.alert, active, &history, cooldown)
			cmd.reply <- struct{}{}
		case "active":
			out := make([]models.Alert, 0, len(active))
			for _, a := range active {
				out = append(out, *a)
			}
			cmd.reply <- out
		case "ack":
			for _, a := range active {
				if a.ID == cmd.id {
					now := time.Now().UTC().Format(time.RFC3339)
					a.Acked = true
					a.AckedAt = &now
					break
				}
			}
			for _, h := range history {
				if h.ID == cmd.id {
					now := time.Now().UTC().Format(time.RFC3339)
					h.Acked = true
					h.AckedAt = &now
				}
			}
			cmd.reply <- struct{}{}
		case "clear":
			var found string
			for alertType, a := range active {
				if a.ID == cmd.id {
					found = alertType
					break
				}
			}
			if found != "" {
				delete(active, found)
				e.bus.Publish(AlertEvent{Kind: "alert_cleared", AlertID: cmd.id, AlertType: found})
			}
			cmd.reply <- struct{}{}
		case "clear_all":
			count := len(active)
			active = make(map[string]*models.Alert)
			e.bus.Publish(AlertEvent{Kind: "all_alerts_cleared", ClearCount: count})
			cmd.reply <- struct{}{}
		}
	}
}

// tryFire applies the per-type cooldown and, if the alert survives, stores
// and publishes it. The enabled and notify gates are applied by Evaluate.
func (e *AlertEngine) tryFire(a *models.Alert, active map[string]*models.Alert, history *[]*models.Alert, cooldown models.Cooldown) {
	last, seen := cooldown[a.Type]
	now := time.Now()
	if seen && now.Sub(time.Unix(last, 0)) < time.Duration(e.cfg.CooldownMinutes)*time.Minute {
		return
	}
	cooldown[a.Type] = now.Unix()

	a.ID = e.nextID()
	active[a.Type] = a
	*history = append(*history, a)
	if len(*history) > 1000 {
		*history = (*history)[len(*history)-1000:]
	}

	e.bus.Publish(AlertEvent{Kind: "alert", Alert: a})
}

func (e *AlertEngine) nextID() string {
	n := atomic.AddInt64(&e.counter, 1)
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), n)
}

// Evaluate checks the suppression rules (enabled / notify flags) and, if the
// alert passes, submits it to the owning goroutine for cooldown gating and
// publication.
func (e *AlertEngine) Evaluate(alertType, severity, title, message string, data map[string]interface{}) {
	if !e.cfg.Enabled {
		return
	}
	if severity == models.SeverityWarning && !e.cfg.NotifyOnWarning {
		return
	}
	if severity == models.SeverityCritical && !e.cfg.NotifyOnCritical {
		return
	}

	a := &models.Alert{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      alertType,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Data:      data,
	}

	reply := make(chan any, 1)
	e.commands <- alertCommand{kind: "evaluate", alert: a, reply: reply}
	<-reply
}

// EvaluateSignal runs the SINR/RSRP threshold rules against one radio's
// latest metrics (§4.4's four evaluated series: 5G SINR/RSRP, 4G SINR/RSRP).
func (e *AlertEngine) EvaluateSignal(radio string, sinr, rsrp *float64) {
	if sinr != nil {
		e.evaluateMetric(radio, "sinr", *sinr, e.cfg.SinrCriticalDB, e.cfg.SinrWarningDB, "dB")
	}
	if rsrp != nil {
		e.evaluateMetric(radio, "rsrp", *rsrp, e.cfg.RsrpCriticalDBm, e.cfg.RsrpWarningDBm, "dBm")
	}
}

func (e *AlertEngine) evaluateMetric(radio, metric string, value, critical, warning float64, unit string) {
	switch {
	case value < critical:
		e.Evaluate(models.AlertTypeSignalCritical, models.SeverityCritical,
			fmt.Sprintf("%s %s critical", radio, metric),
			fmt.Sprintf("%s %s=%.1f%s below critical threshold %.1f%s", radio, metric, value, unit, critical, unit),
			map[string]interface{}{"radio": radio, "metric": metric, "value": value})
	case value < warning:
		e.Evaluate(models.AlertTypeSignalDrop, models.SeverityWarning,
			fmt.Sprintf("%s %s low", radio, metric),
			fmt.Sprintf("%s %s=%.1f%s below warning threshold %.1f%s", radio, metric, value, unit, warning, unit),
			map[string]interface{}{"radio": radio, "metric": metric, "value": value})
	}
}

// EvaluateSpeedtest runs the download/packet-loss/jitter rules against the
// latest speedtest result.
func (e *AlertEngine) EvaluateSpeedtest(downloadMbps, packetLossPercent, jitterMs *float64) {
	if downloadMbps != nil && *downloadMbps < e.cfg.SpeedLowMbps {
		e.Evaluate(models.AlertTypeSpeedLow, models.SeverityWarning, "download speed low",
			fmt.Sprintf("download %.1f Mbps below threshold %.1f Mbps", *downloadMbps, e.cfg.SpeedLowMbps),
			map[string]interface{}{"download_mbps": *downloadMbps})
	}
	if packetLossPercent != nil && *packetLossPercent > e.cfg.PacketLossPercent {
		e.Evaluate(models.AlertTypePacketLoss, models.SeverityWarning, "packet loss high",
			fmt.Sprintf("packet loss %.1f%% above threshold %.1f%%", *packetLossPercent, e.cfg.PacketLossPercent),
			map[string]interface{}{"packet_loss_percent": *packetLossPercent})
	}
	if jitterMs != nil && *jitterMs > e.cfg.JitterMs {
		e.Evaluate(models.AlertTypeHighJitter, models.SeverityWarning, "jitter high",
			fmt.Sprintf("jitter %.1f ms above threshold %.1f ms", *jitterMs, e.cfg.JitterMs),
			map[string]interface{}{"jitter_ms": *jitterMs})
	}
}

// Active returns a snapshot of every active alert, one per alert-type.
func (e *AlertEngine) Active() []models.Alert {
	reply := make(chan any, 1)
	e.commands <- alertCommand{kind: "active", reply: reply}
	return (<-reply).([]models.Alert)
}

// Acknowledge stamps an acknowledgement time on the active entry and every
// matching history entry.
func (e *AlertEngine) Acknowledge(id string) {
	reply := make(chan any, 1)
	e.commands <- alertCommand{kind: "ack", id: id, reply: reply}
	<-reply
}

// Clear removes an alert from the active map and publishes alert_cleared.
func (e *AlertEngine) Clear(id string) {
	reply := make(chan any, 1)
	e.commands <- alertCommand{kind: "clear", id: id, reply: reply}
	<-reply
}

// ClearAll removes every active alert and publishes all_alerts_cleared.
func (e *AlertEngine) ClearAll() {
	reply := make(chan any, 1)
	e.commands <- alertCommand{kind: "clear_all", reply: reply}
	<-reply
}

// Subscribe returns a live stream of alert/alert_cleared/all_alerts_cleared
// events.
func (e *AlertEngine) Subscribe() (<-chan AlertEvent, func()) {
	return e.bus.Subscribe()
}
