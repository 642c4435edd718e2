package service

import (
	"context"
	"sync"
	"time"

	apperrors "gatewaymon/internal/errors"
	"gatewaymon/internal/models"

	"github.com/sirupsen/logrus"
)

// SpeedtestScheduler drives the Speedtest Orchestrator at a configurable
// interval, gated by an optional time-of-day window and weekend flag, and
// optionally cycling through a fixed list of tools each run.
type SpeedtestScheduler struct {
	orchestrator *SpeedtestOrchestrator
	logger       *logrus.Logger

	mu      sync.Mutex
	cfg     models.SchedulerConfig
	running bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	intervalCh chan struct{}

	stats models.SchedulerStats

	totalDownload float64
	totalUpload   float64
	successCount  int64
}

// NewSpeedtestScheduler builds a scheduler bound to one orchestrator.
func NewSpeedtestScheduler(orchestrator *SpeedtestOrchestrator, cfg models.SchedulerConfig, logger *logrus.Logger) *SpeedtestScheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &SpeedtestScheduler{
		orchestrator: orchestrator,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start begins the scheduler loop. Starting an already-running scheduler
// returns an already_running error.
func (s *SpeedtestScheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeAlreadyRunning, "scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.intervalCh = make(chan struct{}, 1)
	s.stats.Running = true
	s.mu.Unlock()

	go s.loop()
	return nil
}

// Stop interrupts the scheduler loop. Any in-flight speedtest runs to
// completion; the loop itself does not spawn a new cycle once stopped.
// Stopping an already-stopped scheduler returns a not_running error.
func (s *SpeedtestScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeNotRunning, "scheduler is not running")
	}
	stopCh := s.stopCh
	s.running = false
	s.stats.Running = false
	s.mu.Unlock()

	close(stopCh)
	<-s.doneCh
	return nil
}

// UpdateInterval changes interval_minutes for a running scheduler without
// losing accumulated counters; the internal timer restarts on the new value.
func (s *SpeedtestScheduler) UpdateInterval(minutes int) {
	s.mu.Lock()
	s.cfg.IntervalMinutes = minutes
	ch := s.intervalCh
	s.mu.Unlock()

	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Stats returns a snapshot of the scheduler's running counters.
func (s *SpeedtestScheduler) Stats() models.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	if s.successCount > 0 {
		stats.AvgDownloadMbps = s.totalDownload / float64(s.successCount)
		stats.AvgUploadMbps = s.totalUpload / float64(s.successCount)
	}
	return stats
}

func (s *SpeedtestScheduler) loop() {
	defer close(s.doneCh)

	for {
		interval := s.intervalDuration()
		next := time.Now().Add(interval)
		s.setNextTest(next)

		timer := time.NewTimer(interval)
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-s.intervalCh:
			timer.Stop()
			continue // re-read the interval and restart the wait from now
		case <-timer.C:
		}

		if s.inWindow(time.Now()) {
			s.runCycle()
		}
	}
}

func (s *SpeedtestScheduler) intervalDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	minutes := s.cfg.IntervalMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

func (s *SpeedtestScheduler) setNextTest(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := t.Format(time.RFC3339)
	s.stats.NextTestTime = &ts
	secs := time.Until(t).Seconds()
	s.stats.NextInSeconds = &secs
}

// inWindow implements the weekend gate and the start/end hour predicate,
// including the wrap-around case where start > end.
func (s *SpeedtestScheduler) inWindow(now time.Time) bool {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if !cfg.RunOnWeekends {
		wd := now.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}

	if cfg.TimeWindowStart == nil || cfg.TimeWindowEnd == nil {
		return true
	}

	hour := now.Hour()
	start, end := *cfg.TimeWindowStart, *cfg.TimeWindowEnd
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// toolDelay returns the configured pause between tools in a cycle. An
// explicit zero is honored as "no delay" rather than being treated the same
// as an absent value, which falls back to a 10 second default. Callers must
// hold s.mu.
func (s *SpeedtestScheduler) toolDelay() time.Duration {
	if s.cfg.DelayBetweenToolsSeconds == nil {
		return 10 * time.Second
	}
	return time.Duration(*s.cfg.DelayBetweenToolsSeconds) * time.Second
}

// runCycle invokes the orchestrator once per tool in tools_to_run (or once
// with auto-selection if the list is empty), sleeping between tools.
func (s *SpeedtestScheduler) runCycle() {
	s.mu.Lock()
	tools := append([]string(nil), s.cfg.ToolsToRun...)
	delay := s.toolDelay()
	s.mu.Unlock()

	if len(tools) == 0 {
		tools = []string{""}
	}

	ctx := context.Background()
	for i, toolName := range tools {
		result := s.orchestrator.RunSpeedtest(ctx, RunOptions{
			ToolName:    toolName,
			TriggeredBy: models.TriggeredByScheduler,
		})
		s.recordResult(result)

		if i < len(tools)-1 {
			select {
			case <-s.stopCh:
				return
			case <-time.After(delay):
			}
		}
	}
}

func (s *SpeedtestScheduler) recordResult(r *models.SpeedtestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	s.stats.LastTestTime = &now

	if r.Status == models.SpeedtestStatusSuccess {
		s.stats.CompletedRuns++
		s.successCount++
		s.totalDownload += r.DownloadMbps
		s.totalUpload += r.UploadMbps
	} else {
		s.stats.FailedRuns++
	}
}
