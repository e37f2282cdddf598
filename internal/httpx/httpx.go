package httpx

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/service"
	"github.com/noteduco342/om-relay/internal/validation"
)

type ErrorResponse struct {
	Error     string      `json:"error"`
	Code      string      `json:"code,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Conflict(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusConflict, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

// FromError renders a service or validation error with the matching status.
// Anything unrecognised is logged and hidden behind a 500.
func FromError(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:     verr.Error(),
			Code:      "validation_failed",
			RequestID: requestID(c),
			Details:   verr.Fields,
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return BadRequest(c, "invalid_input", err.Error())
	case errors.Is(err, service.ErrForbidden):
		return Forbidden(c, "forbidden", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return NotFound(c, "not_found", err.Error())
	case errors.Is(err, service.ErrConflict):
		return Conflict(c, "conflict", err.Error())
	}

	logging.Ctx(c.UserContext()).Error().
		Err(err).
		Str("request_id", requestID(c)).
		Str("path", c.Path()).
		Msg("request failed")
	return Internal(c, "internal_error")
}

// LocalString reads a string value stored by middleware, such as the
// authenticated user id.
func LocalString(c *fiber.Ctx, key string) (string, error) {
	v := c.Locals(key)
	if v == nil {
		return "", fmt.Errorf("missing local %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("invalid local %s", key)
	}
	return s, nil
}
