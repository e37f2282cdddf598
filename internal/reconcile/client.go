package reconcile

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/models"
)

// Client reads the poll endpoints with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx answer in the relay's error envelope.
type APIError struct {
	Status int
	Code   string `json:"code"`
	Msg    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay: %d %s: %s", e.Status, e.Code, e.Msg)
}

func (c *Client) agent(method, path string) *fiber.Agent {
	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(strings.TrimRight(c.BaseURL, "/") + path)
	if c.Token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+c.Token)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a.Timeout(timeout)
	a.JSONDecoder(json.Unmarshal)
	return a
}

func (c *Client) do(method, path string, out interface{}) error {
	a := c.agent(method, path)
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return err
	}
	// Bytes releases the agent.
	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if status < 200 || status > 299 {
		apiErr := &APIError{Status: status}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Messages fetches the authoritative message list for a chat.
func (c *Client) Messages(chatID string) ([]models.MessageResponse, error) {
	var resp struct {
		Messages []models.MessageResponse `json:"messages"`
	}
	if err := c.do(fiber.MethodGet, "/api/messages?chatId="+url.QueryEscape(chatID), &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Chats fetches the caller's visible chats with unread counts.
func (c *Client) Chats() ([]models.ChatResponse, error) {
	var resp struct {
		Chats []models.ChatResponse `json:"chats"`
	}
	if err := c.do(fiber.MethodGet, "/api/chats", &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// CheckScheduled asks the server to dispatch the caller's due messages and
// returns how many went out.
func (c *Client) CheckScheduled() (int, error) {
	var resp struct {
		Processed int `json:"processed"`
	}
	if err := c.do(fiber.MethodPost, "/api/scheduled/check", &resp); err != nil {
		return 0, err
	}
	return resp.Processed, nil
}
