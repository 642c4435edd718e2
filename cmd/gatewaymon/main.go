package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatewaymon/internal/config"
	"gatewaymon/internal/database"
	"gatewaymon/internal/models"
	"gatewaymon/internal/service"
	"gatewaymon/internal/tracing"
	"gatewaymon/pkg/gateway"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	addr := flag.String("addr", ":8090", "HTTP listen address")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	tracingMgr := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "dev",
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)
	if err := tracingMgr.Initialize(context.Background()); err != nil {
		logger.WithError(err).Warn("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracingMgr.Shutdown(shutdownCtx)
	}()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "./gatewaymon.db"
	}
	db, err := database.New(dbPath, &cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	client := gateway.NewClient(cfg.Gateway.Host, cfg.Gateway.Port, time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second)
	poller := service.NewGatewayPoller(client, db, cfg.Gateway, logger)

	detector := service.NewDisruptionDetector(db, service.DefaultDisruptionDetectorConfig(), logger)
	signalCh, unsubSignal := poller.Subscribe()
	defer unsubSignal()
	detectorCtx, cancelDetector := context.WithCancel(context.Background())
	defer cancelDetector()
	go detector.Run(detectorCtx, signalCh)

	alerts := service.NewAlertEngine(cfg.Alerts, logger)
	go runAlertBridge(detectorCtx, poller, alerts)

	orchestrator := service.NewSpeedtestOrchestrator(context.Background(), db, service.DefaultSpeedtestOrchestratorConfig(), "", logger)
	scheduler := service.NewSpeedtestScheduler(orchestrator, cfg.Scheduler, logger)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(); err != nil {
			logger.WithError(err).Warn("failed to start speedtest scheduler")
		}
	}

	watcher := config.NewConfigWatcher(*configPath, logger)
	watcher.OnConfigChange(func(newCfg *models.Config) {
		scheduler.UpdateInterval(newCfg.Scheduler.IntervalMinutes)
	})
	watcherCtx, cancelWatcher := context.WithCancel(context.Background())
	defer cancelWatcher()
	go func() {
		if err := watcher.Start(watcherCtx); err != nil {
			logger.WithError(err).Warn("configuration watcher stopped")
		}
	}()

	var prober *service.NetworkProber
	if cfg.Probe.Enabled {
		targets := make([]service.PingTarget, 0, len(cfg.Probe.Targets))
		for _, host := range cfg.Probe.Targets {
			targets = append(targets, service.PingTarget{Host: host, Name: host})
		}
		prober = service.NewNetworkProber(db, targets,
			time.Duration(cfg.Probe.IntervalSeconds)*time.Second,
			cfg.Probe.PingCount,
			time.Duration(cfg.Probe.TimeoutSeconds)*time.Second,
			logger)
		prober.Start()
	}

	poller.StartPolling()

	server := NewServer(poller, alerts, orchestrator, scheduler, db, logger)

	go func() {
		if err := server.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}

	poller.StopPolling()
	if prober != nil {
		prober.Stop()
	}
	if scheduler.Stats().Running {
		_ = scheduler.Stop()
	}
	cancelDetector()
}

// runAlertBridge feeds every published signal sample through the alert
// engine's threshold rules for as long as the poller keeps publishing.
func runAlertBridge(ctx context.Context, poller *service.GatewayPoller, alerts *service.AlertEngine) {
	ch, unsub := poller.Subscribe()
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-ch:
			if !ok {
				return
			}
			evaluateSample(sample, alerts)
		}
	}
}

func evaluateSample(sample models.SignalSample, alerts *service.AlertEngine) {
	alerts.EvaluateSignal("5g", sample.NRSinr, sample.NRRsrp)
	alerts.EvaluateSignal("4g", sample.LTESinr, sample.LTERsrp)
}
