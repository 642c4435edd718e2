package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gatewaymon/internal/database"
	apperrors "gatewaymon/internal/errors"
	"gatewaymon/internal/middleware"
	"gatewaymon/internal/models"
	"gatewaymon/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP façade: it mounts the read/control endpoints described
// by the external interface over the long-lived service components.
type Server struct {
	router *mux.Router
	logger *logrus.Logger

	poller       *service.GatewayPoller
	alerts       *service.AlertEngine
	orchestrator *service.SpeedtestOrchestrator
	scheduler    *service.SpeedtestScheduler
	db           *database.Database

	serverMu sync.RWMutex
	server   *http.Server
}

// NewServer wires route handlers to the already-constructed service layer.
func NewServer(poller *service.GatewayPoller, alerts *service.AlertEngine, orchestrator *service.SpeedtestOrchestrator, scheduler *service.SpeedtestScheduler, db *database.Database, logger *logrus.Logger) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		logger:       logger,
		poller:       poller,
		alerts:       alerts,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		db:           db,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))
	s.router.Use(middleware.DetailedLoggingMiddleware(s.logger, middleware.DefaultDetailedLoggingConfig()))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	s.router.HandleFunc("/api/signal", s.handleSignal()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/signal/history", s.handleSignalHistory()).Methods(http.MethodGet)
	s.router.Handle("/api/speedtest", middleware.CommandObservabilityMiddleware(s.logger, "speedtest")(s.handleRunSpeedtest())).Methods(http.MethodPost)
	s.router.HandleFunc("/api/speedtest", s.handleQuerySpeedtests()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/scheduler/status", s.handleSchedulerStatus()).Methods(http.MethodGet)
	s.router.Handle("/api/scheduler/start", middleware.CommandObservabilityMiddleware(s.logger, "scheduler_start")(s.handleSchedulerStart())).Methods(http.MethodPost)
	s.router.Handle("/api/scheduler/stop", middleware.CommandObservabilityMiddleware(s.logger, "scheduler_stop")(s.handleSchedulerStop())).Methods(http.MethodPost)
	s.router.HandleFunc("/api/disruptions", s.handleDisruptions()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/alerts", s.handleAlerts()).Methods(http.MethodGet)
	s.router.Handle("/api/alerts/{id}/ack", middleware.CommandObservabilityMiddleware(s.logger, "alert_ack")(s.handleAckAlert())).Methods(http.MethodPost)
	s.router.HandleFunc("/api/events", s.handleEvents()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events/ws", s.handleEventsWS()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/gateway/status", s.handleGatewayStatus()).Methods(http.MethodGet)
}

// Start runs the HTTP server on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.serverMu.Lock()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv := s.server
	s.serverMu.Unlock()

	s.logger.Infof("starting HTTP server on %s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.RLock()
	srv := s.server
	s.serverMu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	body := map[string]interface{}{"error": message}
	if errType != "" {
		body["type"] = errType
	}
	writeJSON(w, status, body)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func (s *Server) handleSignal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sample := s.poller.CurrentData()
		if sample == nil {
			writeError(w, http.StatusServiceUnavailable, "", "No signal data available")
			return
		}
		writeJSON(w, http.StatusOK, sample)
	}
}

func (s *Server) handleSignalHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		duration := 60
		if v := r.URL.Query().Get("duration_minutes"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				duration = parsed
			}
		}
		resolution := r.URL.Query().Get("resolution")
		if resolution == "" {
			resolution = "raw"
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		data, err := s.db.QuerySignalHistory(ctx, models.SignalHistoryQuery{DurationMinutes: duration, Resolution: resolution})
		if err != nil {
			s.logger.WithError(err).Error("failed to query signal history")
			writeError(w, http.StatusInternalServerError, string(apperrors.ErrCodeDatabaseQuery), "failed to query signal history")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":            len(data),
			"duration_minutes": duration,
			"resolution":       resolution,
			"data":             data,
		})
	}
}

func (s *Server) handleRunSpeedtest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tool string `json:"tool"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		opts := service.RunOptions{
			ToolName:       req.Tool,
			TriggeredBy:    models.TriggeredByAPI,
			SignalSnapshot: s.poller.CurrentData(),
		}

		result := s.orchestrator.RunSpeedtest(r.Context(), opts)

		switch result.Status {
		case models.SpeedtestStatusSuccess:
			writeJSON(w, http.StatusOK, result)
		case models.SpeedtestStatusBusy:
			writeJSON(w, http.StatusConflict, result)
		case models.SpeedtestStatusTimeout:
			writeJSON(w, http.StatusGatewayTimeout, result)
		default:
			writeJSON(w, http.StatusInternalServerError, result)
		}
	}
}

func (s *Server) handleQuerySpeedtests() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		data, err := s.db.QuerySpeedtests(ctx, limit)
		if err != nil {
			s.logger.WithError(err).Error("failed to query speedtests")
			writeError(w, http.StatusInternalServerError, string(apperrors.ErrCodeDatabaseQuery), "failed to query speed tests")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(data), "data": data})
	}
}

func (s *Server) handleSchedulerStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.scheduler.Stats())
	}
}

func (s *Server) handleSchedulerStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.scheduler.Start(); err != nil {
			writeError(w, http.StatusConflict, string(apperrors.ErrCodeAlreadyRunning), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.scheduler.Stats())
	}
}

func (s *Server) handleSchedulerStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.scheduler.Stop(); err != nil {
			writeError(w, http.StatusConflict, string(apperrors.ErrCodeNotRunning), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.scheduler.Stats())
	}
}

func (s *Server) handleDisruptions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := 24
		if v := r.URL.Query().Get("hours"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				hours = parsed
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		data, err := s.db.QueryDisruptions(ctx, hours)
		if err != nil {
			s.logger.WithError(err).Error("failed to query disruptions")
			writeError(w, http.StatusInternalServerError, string(apperrors.ErrCodeDatabaseQuery), "failed to query disruptions")
			return
		}
		stats, err := s.db.DisruptionStats(ctx, hours)
		if err != nil {
			s.logger.WithError(err).Error("failed to compute disruption stats")
			writeError(w, http.StatusInternalServerError, string(apperrors.ErrCodeDatabaseQuery), "failed to compute disruption stats")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"period_hours": hours,
			"count":        len(data),
			"stats":        stats,
			"data":         data,
		})
	}
}

func (s *Server) handleAlerts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.alerts.Active())
	}
}

func (s *Server) handleAckAlert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		s.alerts.Acknowledge(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleEvents serves a merged Server-Sent Events stream of signal samples,
// outage transitions, and alerts until the client disconnects.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "", "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		signalCh, unsubSignal := s.poller.Subscribe()
		defer unsubSignal()
		outageCh, unsubOutage := s.poller.SubscribeOutages()
		defer unsubOutage()
		alertCh, unsubAlert := s.alerts.Subscribe()
		defer unsubAlert()

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSEEvent(w, flusher, "heartbeat", map[string]int64{"timestamp": time.Now().Unix()})
			case sample, ok := <-signalCh:
				if !ok {
					return
				}
				writeSSEEvent(w, flusher, "signal", sample)
			case outage, ok := <-outageCh:
				if !ok {
					return
				}
				writeSSEEvent(w, flusher, "outage", outage)
			case alert, ok := <-alertCh:
				if !ok {
					return
				}
				writeSSEEvent(w, flusher, "alert", alert)
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, kind string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
	flusher.Flush()
}

func (s *Server) handleGatewayStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := s.poller.Stats()
		sample := s.poller.CurrentData()

		connected := stats.CircuitState == "closed" && sample != nil
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"connected":      connected,
			"circuit_state":  stats.CircuitState,
			"success_count":  stats.SuccessCount,
			"error_count":    stats.ErrorCount,
			"last_success":   stats.LastSuccess,
			"last_attempt":   stats.LastAttempt,
			"last_error":     stats.LastError,
			"current_sample": sample,
		})
	}
}
