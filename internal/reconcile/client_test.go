package reconcile

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/models"
)

func startStub(t *testing.T) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/api/messages", func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer tok" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing access token", "code": "missing_access_token"})
		}
		if c.Query("chatId") != "chat" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "chat not found", "code": "not_found"})
		}
		return c.JSON(fiber.Map{"messages": []models.MessageResponse{
			{ID: "m1", ChatID: "chat", SenderID: "alice", ReceiverID: "bob", CreatedAt: base, Status: models.StateSent},
		}})
	})
	app.Post("/api/scheduled/check", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "processed": 2})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestClientMessages(t *testing.T) {
	baseURL := startStub(t)
	c := &Client{BaseURL: baseURL, Token: "tok", Timeout: 2 * time.Second}

	messages, err := c.Messages("chat")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m1" {
		t.Errorf("Messages() = %+v, want m1", messages)
	}

	processed, err := c.CheckScheduled()
	if err != nil {
		t.Fatalf("CheckScheduled() error = %v", err)
	}
	if processed != 2 {
		t.Errorf("CheckScheduled() = %d, want 2", processed)
	}
}

func TestClientErrors(t *testing.T) {
	baseURL := startStub(t)

	tests := []struct {
		name     string
		client   *Client
		chatID   string
		wantCode string
	}{
		{"no token", &Client{BaseURL: baseURL}, "chat", "missing_access_token"},
		{"unknown chat", &Client{BaseURL: baseURL, Token: "tok"}, "other", "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Messages(tt.chatID)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Messages() error = %v, want *APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", apiErr.Code, tt.wantCode)
			}
		})
	}
}
