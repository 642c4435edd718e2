package main

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
)

// handleEventsWS is the websocket counterpart of /api/events: the same
// merged signal/outage/alert fan-out, framed as individual text messages
// instead of SSE, for browser clients that prefer a persistent socket.
func (s *Server) handleEventsWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()

		signalCh, unsubSignal := s.poller.Subscribe()
		defer unsubSignal()
		outageCh, unsubOutage := s.poller.SubscribeOutages()
		defer unsubOutage()
		alertCh, unsubAlert := s.alerts.Subscribe()
		defer unsubAlert()

		for {
			var kind string
			var payload interface{}

			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case sample, ok := <-signalCh:
				if !ok {
					return
				}
				kind, payload = "signal", sample
			case outage, ok := <-outageCh:
				if !ok {
					return
				}
				kind, payload = "outage", outage
			case alert, ok := <-alertCh:
				if !ok {
					return
				}
				kind, payload = "alert", alert
			}

			data, err := json.Marshal(struct {
				Kind string      `json:"kind"`
				Data interface{} `json:"data"`
			}{kind, payload})
			if err != nil {
				continue
			}

			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
