// Package web provides the real-time wristpad dashboard: REST status
// snapshots plus websocket pushes of state and confirmed gestures.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/hub"
)

// maxEvents bounds the recent-event ring served to new clients.
const maxEvents = 100

// StatusFunc returns the current pipeline status document.
type StatusFunc func() any

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	statusFn StatusFunc

	eventsMu sync.RWMutex
	events   []json.RawMessage

	statusHub *hub.Hub
	eventsHub *hub.Hub
}

// NewServer creates a dashboard server on addr. statusFn is polled on
// demand for REST requests and initial websocket frames.
func NewServer(addr string, statusFn StatusFunc) *Server {
	s := &Server{
		addr:      addr,
		logger:    log.Component("web"),
		statusFn:  statusFn,
		statusHub: hub.New("status"),
		eventsHub: hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "wristpad dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start serves until ctx is cancelled. It blocks; use StartAsync from
// the pipeline.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.eventsHub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("dashboard shutdown failed", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", s.addr)
	if err := s.app.Listen(s.addr); err != nil {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine, logging any serve error.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("dashboard server failed", "error", err)
		}
	}()
}

// PublishStatus pushes a status document to websocket subscribers.
func (s *Server) PublishStatus(v any) {
	if err := s.statusHub.BroadcastJSON(v); err != nil {
		s.logger.Error("encoding status failed", "error", err)
	}
}

// PublishEvent records a confirmed gesture or fired action and pushes
// it to websocket subscribers.
func (s *Server) PublishEvent(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding event failed", "error", err)
		return
	}

	s.eventsMu.Lock()
	s.events = append(s.events, data)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	s.eventsHub.Broadcast(data)
}

// recentEvents copies the ring. The copy is never nil so an empty ring
// serializes as [] rather than null.
func (s *Server) recentEvents() []json.RawMessage {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return append(make([]json.RawMessage, 0, len(s.events)), s.events...)
}
