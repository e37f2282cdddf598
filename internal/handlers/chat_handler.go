package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/service"
	"github.com/noteduco342/om-relay/internal/validation"
)

type ChatHandler struct {
	chatService    *service.ChatService
	requestService *service.ChatRequestService
}

func NewChatHandler(chatService *service.ChatService, requestService *service.ChatRequestService) *ChatHandler {
	return &ChatHandler{chatService: chatService, requestService: requestService}
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	chats, err := h.chatService.List(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

type openChatRequest struct {
	ParticipantID string `json:"participantId" validate:"required,max=64"`
}

func (h *ChatHandler) OpenChat(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req openChatRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}

	chat, err := h.chatService.Open(c.UserContext(), userID, req.ParticipantID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(chat)
}

func (h *ChatHandler) DeleteChat(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	mode, err := service.ParseChatDeleteMode(c.Query("type"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	if err := h.chatService.Delete(c.UserContext(), userID, c.Params("id"), mode); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *ChatHandler) ListRequests(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	requests, err := h.requestService.List(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"requests": requests})
}

type createChatRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,max=64"`
}

func (h *ChatHandler) CreateRequest(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req createChatRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}

	request, err := h.requestService.Create(c.UserContext(), userID, req.ReceiverID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

func (h *ChatHandler) AcceptRequest(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	chat, err := h.requestService.Accept(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "chat": chat})
}

func (h *ChatHandler) RejectRequest(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if err := h.requestService.Reject(c.UserContext(), userID, c.Params("id")); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
