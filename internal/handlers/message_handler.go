package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/service"
	"github.com/noteduco342/om-relay/internal/validation"
)

type MessageHandler struct {
	messageService   *service.MessageService
	maxMessageLength int
}

func NewMessageHandler(messageService *service.MessageService, maxMessageLength int) *MessageHandler {
	return &MessageHandler{
		messageService:   messageService,
		maxMessageLength: maxMessageLength,
	}
}

func queryLimit(c *fiber.Ctx) int {
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		return l
	}
	return 0
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.SendMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	input.Content = validation.TrimAndLimit(input.Content, h.maxMessageLength)
	if err := validation.Struct(input); err != nil {
		return httpx.FromError(c, err)
	}

	result, err := h.messageService.Send(c.UserContext(), userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   result.Message.ToResponse(),
		"scheduled": result.Scheduled,
		"delivered": result.Delivered,
	})
}

// GetMessages is the poll endpoint for a 1:1 conversation.
func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	chatID := c.Query("chatId")
	if !validation.ValidateID(chatID) {
		return httpx.BadRequest(c, "missing_chat", "chatId is required")
	}

	messages, err := h.messageService.List(c.UserContext(), userID, chatID, queryLimit(c))
	if err != nil {
		return httpx.FromError(c, err)
	}

	out := make([]models.MessageResponse, len(messages))
	for i := range messages {
		out[i] = messages[i].ToResponse()
	}
	return c.JSON(fiber.Map{"messages": out})
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	message, err := h.messageService.MarkRead(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(message.ToResponse())
}

func (h *MessageHandler) MarkChatRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	count, err := h.messageService.MarkAllRead(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	count, err := h.messageService.UnreadCount(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

func (h *MessageHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	mode, err := service.ParseDeleteMode(c.Query("type"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	if err := h.messageService.Delete(c.UserContext(), userID, c.Params("id"), mode); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

type bulkDeleteRequest struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1,max=500"`
	Type       string   `json:"type"`
}

func (h *MessageHandler) BulkDelete(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req bulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}
	mode, err := service.ParseDeleteMode(req.Type)
	if err != nil {
		return httpx.FromError(c, err)
	}

	n, err := h.messageService.BulkDelete(c.UserContext(), userID, req.MessageIDs, mode)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "deleted": n})
}
