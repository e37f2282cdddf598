package handlers

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/realtime"
)

// EventsHandler streams realtime events over server-sent events for clients
// that cannot hold a websocket.
type EventsHandler struct {
	registry   *realtime.Registry
	sendBuffer int
	heartbeat  time.Duration
}

func NewEventsHandler(registry *realtime.Registry, cfg config.DeliveryConfig) *EventsHandler {
	heartbeat := cfg.SSEHeartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &EventsHandler{registry: registry, sendBuffer: cfg.SendBuffer, heartbeat: heartbeat}
}

// WriteSSE writes one event in text/event-stream framing.
func WriteSSE(w io.Writer, e realtime.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventName(), data)
	return err
}

func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ch := realtime.NewQueueChannel(userID, h.sendBuffer, 0)
	h.registry.Register(userID, ch)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.serve(w, ch)
	})
	return nil
}

// serve pumps ch into w and unregisters ch once the stream ends.
func (h *EventsHandler) serve(w *bufio.Writer, ch *realtime.QueueChannel) {
	defer func() {
		h.registry.Unregister(ch.UserID(), ch)
		ch.Close()
	}()
	h.pump(w, ch)
}

// pump writes until the client goes away or the channel is closed. A failed
// flush is the only signal fasthttp gives for a disconnected client, so an
// idle dead client is noticed at the next heartbeat at the latest.
func (h *EventsHandler) pump(w *bufio.Writer, ch *realtime.QueueChannel) {
	if err := WriteSSE(w, realtime.Connected{UserID: ch.UserID(), ChannelID: ch.ID()}); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ch.Done():
			return
		case e := <-ch.Events():
			if err := WriteSSE(w, e); err != nil {
				logging.Debug().Err(err).Str("user_id", ch.UserID()).Msg("sse encode failed")
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
		}
		if err := w.Flush(); err != nil {
			logging.Debug().Err(err).Str("user_id", ch.UserID()).Msg("sse client gone")
			return
		}
	}
}
