package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wristpad/pkg/hub"
)

// handleStatus returns the current pipeline status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.statusFn == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "status source not configured",
		})
	}
	return c.JSON(s.statusFn())
}

// handleEvents returns the recent confirmed gestures, oldest first.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	return c.JSON(s.recentEvents())
}

// handleStatusWS streams status documents. The current snapshot is
// sent immediately so the page renders without waiting for the next
// push.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if s.statusFn != nil {
		c.WriteJSON(s.statusFn())
	}
	hub.NewClient(s.statusHub, c).Run()
}

// handleEventsWS streams confirmed gestures, replaying the recent ring
// first.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	for _, ev := range s.recentEvents() {
		if err := c.WriteMessage(websocket.TextMessage, ev); err != nil {
			c.Close()
			return
		}
	}
	hub.NewClient(s.eventsHub, c).Run()
}
