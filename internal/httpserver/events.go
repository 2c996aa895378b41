package httpserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
)

const heartbeatInterval = 30 * time.Second

// handleEventStream bridges the notification service onto a
// server-sent-events response. The subscription is removed when the
// client disconnects.
func (s *Server) handleEventStream(c echo.Context) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(200)
	c.Response().Flush()

	events, subCtx := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(events)

	s.logger.Debug("event stream client connected", "remote", c.RealIP())

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-events:
			if event == nil {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("failed to marshal event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				return nil
			}
			c.Response().Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(c.Response(), ": heartbeat\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()

		case <-c.Request().Context().Done():
			s.logger.Debug("event stream client disconnected", "remote", c.RealIP())
			return nil

		case <-subCtx.Done():
			return nil
		}
	}
}
