package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/service"
	"github.com/forma-lms/gradebook-api/internal/utils"
)

// SyncHandler exposes the realtime surface: an SSE stream of change events
// for gradebook views and a websocket carrying advisory progress pings.
type SyncHandler struct {
	service   service.SyncService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(service service.SyncService, keepAlive time.Duration, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		service:   service,
		logger:    logger.With().Str("component", "sync_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the stream routes under the provided router group.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Get("/sessions/:sessionId/stream", h.stream)

	router.Use("/sessions/:sessionId/progress", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/sessions/:sessionId/progress", websocket.New(h.progress))
}

func (h *SyncHandler) stream(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "sessionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	events, cleanup := h.service.Subscribe(sessionID)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeChangeEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write change event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write stream keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

// progress serves a bidirectional websocket. Inbound frames are learner
// heartbeats that get fanned out; outbound frames carry pings from every
// learner in the session so trainer rosters can show live presence.
func (h *SyncHandler) progress(conn *websocket.Conn) {
	sessionID := websocketSessionID(conn)
	if sessionID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "session id required"))
		_ = conn.Close()
		return
	}

	userID := websocketUserID(conn)
	pings, cleanup := h.service.SubscribeProgress(sessionID)
	done := make(chan struct{})

	h.logger.Info().Uint("session_id", sessionID).Uint("user_id", userID).Msg("progress websocket connected")

	go func() {
		defer close(done)
		for {
			var ping dto.ProgressPing
			if err := conn.ReadJSON(&ping); err != nil {
				return
			}
			// The socket is scoped; the client cannot ping into another
			// session or on behalf of another learner.
			ping.SessionID = sessionID
			if userID != 0 {
				ping.UserID = userID
			}
			h.service.PublishProgress(ping)
		}
	}()

	for {
		select {
		case ping, ok := <-pings:
			if !ok {
				cleanup()
				_ = conn.Close()
				<-done
				return
			}
			if err := conn.WriteJSON(ping); err != nil {
				cleanup()
				_ = conn.Close()
				<-done
				return
			}
		case <-done:
			cleanup()
			h.logger.Info().Uint("session_id", sessionID).Uint("user_id", userID).Msg("progress websocket disconnected")
			return
		}
	}
}

func writeChangeEvent(w *bufio.Writer, event dto.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: change\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}

func websocketSessionID(conn *websocket.Conn) uint {
	var parsed uint
	if _, err := fmt.Sscanf(conn.Params("sessionId"), "%d", &parsed); err != nil {
		return 0
	}
	return parsed
}

func websocketUserID(conn *websocket.Conn) uint {
	switch v := conn.Locals("user_id").(type) {
	case float64:
		return uint(v)
	case uint:
		return v
	case int:
		return uint(v)
	}
	return 0
}
