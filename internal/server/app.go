package server

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/handlers"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/middleware"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp builds the fiber application with every route mounted.
func NewApp(cfg *config.Config, registry *realtime.Registry, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "OM Relay",
		BodyLimit:             cfg.Server.BodyLimit,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})

	origins := middleware.SplitCSV(cfg.Server.AllowedOrigins)

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	corsConfig := cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-OM-CSRF, X-Supports-Gzip",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}
	if len(origins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	app.Use(cors.New(corsConfig))

	messageHandler := handlers.NewMessageHandler(svc.Messages, cfg.Limits.MaxMessageLength)
	chatHandler := handlers.NewChatHandler(svc.Chats, svc.Requests)
	groupHandler := handlers.NewGroupHandler(svc.Groups, cfg.Limits.MaxMessageLength)
	userHandler := handlers.NewUserHandler(svc.Users)
	scheduledHandler := handlers.NewScheduledHandler(svc.Dispatcher, svc.Sweeper)
	eventsHandler := handlers.NewEventsHandler(registry, cfg.Delivery)
	wsHandler := handlers.NewWebSocketHandler(registry, cfg.Delivery, cfg.Auth.JWTSecret)

	api := app.Group("/api", middleware.OriginAllowed(origins))
	protected := api.Group("/",
		middleware.AuthRequired(cfg.Auth.JWTSecret),
		middleware.CSRFRequired(cfg.Auth.CSRFMode, origins),
	)

	protected.Get("/events", eventsHandler.Stream)

	protected.Get("/users/me", userHandler.GetCurrentUser)
	protected.Get("/users/:id", userHandler.GetUser)
	protected.Get("/presence", userHandler.Presence)

	protected.Get("/chats", chatHandler.ListChats)
	protected.Post("/chats", chatHandler.OpenChat)
	protected.Delete("/chats/:id", chatHandler.DeleteChat)

	protected.Get("/chat-requests", chatHandler.ListRequests)
	protected.Post("/chat-requests",
		limiter.New(limiter.Config{
			Max:        20,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := httpx.LocalString(c, "userID"); err == nil {
					return "chat-request:" + uid
				}
				return c.IP()
			},
		}),
		chatHandler.CreateRequest,
	)
	protected.Post("/chat-requests/:id/accept", chatHandler.AcceptRequest)
	protected.Post("/chat-requests/:id/reject", chatHandler.RejectRequest)

	protected.Get("/messages", messageHandler.GetMessages)
	protected.Post("/messages", messageHandler.SendMessage)
	protected.Post("/messages/bulk-delete", messageHandler.BulkDelete)
	protected.Post("/messages/:id/read", messageHandler.MarkRead)
	protected.Delete("/messages/:id", messageHandler.DeleteMessage)
	protected.Post("/chats/:id/read", messageHandler.MarkChatRead)
	protected.Get("/chats/:id/unread", messageHandler.UnreadCount)

	protected.Post("/groups", groupHandler.CreateGroup)
	protected.Get("/groups", groupHandler.ListGroups)
	protected.Post("/groups/:id/members", groupHandler.AddMember)
	protected.Delete("/groups/:id/members", groupHandler.RemoveMember)
	protected.Post("/groups/:id/leave", groupHandler.Leave)
	protected.Get("/groups/:id/messages", groupHandler.GetMessages)
	protected.Post("/groups/:id/messages", groupHandler.SendMessage)
	protected.Delete("/groups/:id/messages/:messageId", groupHandler.DeleteMessage)
	protected.Post("/groups/:id/read", groupHandler.MarkRead)
	protected.Get("/groups/:id/unread", groupHandler.UnreadCount)
	protected.Post("/groups/:id/mute", groupHandler.Mute)
	protected.Delete("/groups/:id/mute", groupHandler.Unmute)

	protected.Post("/scheduled/check", scheduledHandler.Check)
	protected.Post("/admin/sweep", middleware.RequireRole("admin"), scheduledHandler.Sweep)

	// Identity arrives in the join frame, so /ws has no auth middleware.
	app.Use("/ws", middleware.OriginAllowed(origins), wsHandler.Upgrade)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"message":      "OM Relay is running",
			"channels":     registry.Count(),
			"online_users": registry.UserCount(),
			"sweeper":      svc.Sweeper != nil,
		})
	})

	return app
}
