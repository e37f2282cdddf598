package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	user, err := h.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.userService.GetUserByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(user)
}

// Presence answers GET /api/presence?ids=a,b,c.
func (h *UserHandler) Presence(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		return httpx.BadRequest(c, "missing_ids", "ids is required")
	}
	presence, err := h.userService.Presence(strings.Split(raw, ","))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"online": presence})
}
