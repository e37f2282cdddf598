package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/httpx"
	"github.com/noteduco342/om-relay/internal/service"
	"github.com/sony/gobreaker/v2"
)

type ScheduledHandler struct {
	dispatcher *service.Dispatcher
	sweeper    *service.Sweeper
}

// NewScheduledHandler wires the dispatch endpoints. sweeper may be nil when
// the background sweeper is disabled; admin sweeps then bypass the breaker.
func NewScheduledHandler(dispatcher *service.Dispatcher, sweeper *service.Sweeper) *ScheduledHandler {
	return &ScheduledHandler{dispatcher: dispatcher, sweeper: sweeper}
}

// Check dispatches the caller's own due messages. Clients call it on their
// poll cadence so scheduled sends surface even when the sweeper is off.
func (h *ScheduledHandler) Check(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	report, err := h.dispatcher.DispatchDue(c.UserContext(), time.Now().UTC(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "processed": report.Total(), "report": report})
}

// Sweep runs an unscoped pass. Admin only.
func (h *ScheduledHandler) Sweep(c *fiber.Ctx) error {
	var (
		report service.DispatchReport
		err    error
	)
	if h.sweeper != nil {
		report, err = h.sweeper.RunOnce(c.UserContext())
	} else {
		report, err = h.dispatcher.DispatchDue(c.UserContext(), time.Now().UTC(), "")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "sweeper_paused", "Sweeper is backing off after repeated failures")
	}
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "processed": report.Total(), "report": report})
}
