package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/handlers/ws"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/middleware"
	"github.com/noteduco342/om-relay/internal/realtime"
)

type WebSocketHandler struct {
	registry      *realtime.Registry
	verify        ws.TokenVerifier
	clientConfig  ws.ClientConfig
	gzipThreshold int
}

// NewWebSocketHandler serves /ws. With an empty jwtSecret the join claim is
// trusted, which is only meant for local development.
func NewWebSocketHandler(registry *realtime.Registry, cfg config.DeliveryConfig, jwtSecret string) *WebSocketHandler {
	h := &WebSocketHandler{
		registry: registry,
		clientConfig: ws.ClientConfig{
			SendBuffer:      cfg.SendBuffer,
			WriteTimeout:    cfg.WriteTimeout,
			PingInterval:    cfg.PingInterval,
			PongTimeout:     cfg.PongTimeout,
			JoinWaitTimeout: cfg.JoinWaitTimeout,
		},
		gzipThreshold: cfg.GzipThreshold,
	}
	if jwtSecret != "" {
		h.verify = func(token string) (string, error) {
			claims, err := middleware.ParseToken(jwtSecret, token)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		}
	}
	return h
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	// Check if client supports gzip compression (via query param or header)
	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"
	codec := ws.NewCodec(c.Query("codec"), supportsGzip, h.gzipThreshold)

	client := ws.NewClient(c, codec, h.registry, h.verify, h.clientConfig)
	logging.Debug().Str("codec", codec.Name()).Bool("gzip", supportsGzip).Msg("websocket connected")
	client.Run()
	logging.Debug().Str("user_id", client.UserID()).Msg("websocket disconnected")
}
