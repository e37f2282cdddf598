package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/service"
	"github.com/noteduco342/om-relay/internal/validation"
)

func TestFromErrorStatusMapping(t *testing.T) {
	type input struct {
		ID string `json:"id" validate:"required"`
	}
	validationErr := validation.Struct(input{})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", &service.Error{Kind: service.ErrInvalidInput, Msg: "bad"}, fiber.StatusBadRequest, "invalid_input"},
		{"forbidden", &service.Error{Kind: service.ErrForbidden, Msg: "no"}, fiber.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("wrapped: %w", service.ErrNotFound), fiber.StatusNotFound, "not_found"},
		{"conflict", &service.Error{Kind: service.ErrConflict, Msg: "again"}, fiber.StatusConflict, "conflict"},
		{"validation", validationErr, fiber.StatusBadRequest, "validation_failed"},
		{"unknown", errors.New("disk on fire"), fiber.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			var got ErrorResponse
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("decode: %v (%s)", err, body)
			}
			if got.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", got.Code, tt.wantCode)
			}
			if tt.wantStatus == fiber.StatusInternalServerError && got.Error != "Internal server error" {
				t.Errorf("internal errors must not leak, got %q", got.Error)
			}
		})
	}
}

func TestLocalString(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if _, err := LocalString(c, "userID"); err == nil {
			t.Error("expected error for missing local")
		}
		c.Locals("userID", "u1")
		v, err := LocalString(c, "userID")
		if err != nil || v != "u1" {
			t.Errorf("LocalString = %q, %v", v, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatal(err)
	}
}
