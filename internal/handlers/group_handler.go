package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/service"
	"github.com/noteduco342/om-relay/internal/validation"
)

type GroupHandler struct {
	groupService     *service.GroupService
	maxMessageLength int
}

func NewGroupHandler(groupService *service.GroupService, maxMessageLength int) *GroupHandler {
	return &GroupHandler{groupService: groupService, maxMessageLength: maxMessageLength}
}

type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	MemberIDs []string `json:"memberIds" validate:"max=500"`
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}

	group, err := h.groupService.Create(c.UserContext(), userID, req.Name, req.MemberIDs)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *GroupHandler) ListGroups(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groups, err := h.groupService.List(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"groups": groups})
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

func (h *GroupHandler) AddMember(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.groupService.AddMember(c.UserContext(), userID, c.Params("id"), req.UserID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *GroupHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.GroupSendInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	input.GroupID = c.Params("id")
	input.Content = validation.TrimAndLimit(input.Content, h.maxMessageLength)
	if err := validation.Struct(input); err != nil {
		return httpx.FromError(c, err)
	}

	result, err := h.groupService.Send(c.UserContext(), userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   result.Message.ToResponse(),
		"scheduled": result.Scheduled,
		"reached":   result.Reached,
	})
}

func (h *GroupHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messages, err := h.groupService.Messages(c.UserContext(), userID, c.Params("id"), queryLimit(c))
	if err != nil {
		return httpx.FromError(c, err)
	}
	out := make([]models.GroupMessageResponse, len(messages))
	for i := range messages {
		out[i] = messages[i].ToResponse()
	}
	return c.JSON(fiber.Map{"messages": out})
}

func (h *GroupHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if err := h.groupService.MarkRead(c.UserContext(), userID, c.Params("id")); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *GroupHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	count, err := h.groupService.UnreadCount(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

type muteRequest struct {
	MemberID string `json:"memberId" validate:"required,max=64"`
	Minutes  int    `json:"minutes" validate:"min=1,max=43200"`
}

func (h *GroupHandler) Mute(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req muteRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}

	mute, err := h.groupService.Mute(c.UserContext(), userID, c.Params("id"), req.MemberID, req.Minutes)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "mutedUntil": mute.Until})
}

func (h *GroupHandler) Unmute(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	memberID := c.Query("memberId")
	if !validation.ValidateID(memberID) {
		return httpx.BadRequest(c, "missing_member", "memberId is required")
	}
	if err := h.groupService.Unmute(c.UserContext(), userID, c.Params("id"), memberID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	memberID := c.Query("memberId")
	if !validation.ValidateID(memberID) {
		return httpx.BadRequest(c, "missing_member", "memberId is required")
	}
	if err := h.groupService.RemoveMember(c.UserContext(), userID, c.Params("id"), memberID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *GroupHandler) Leave(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	deleted, err := h.groupService.Leave(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "deleted": deleted})
}

func (h *GroupHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if err := h.groupService.DeleteMessage(c.UserContext(), userID, c.Params("messageId")); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
