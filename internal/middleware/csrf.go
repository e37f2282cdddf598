package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/httpx"
)

const (
	CSRFModeToken  = "token"
	CSRFModeOrigin = "origin"
	CSRFModeOff    = "off"

	CSRFCookie = "om_csrf"
	CSRFHeader = "X-OM-CSRF"
)

// CSRFRequired guards state-changing browser requests, recognised by an
// Origin header. In token mode the CSRFHeader value must equal the
// CSRFCookie value; origin mode checks only the allow-list. Requests
// without Origin come from non-browser clients and pass.
func CSRFRequired(mode string, allowedOrigins []string) fiber.Handler {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = CSRFModeToken
	}
	if mode == CSRFModeOff {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		origin := strings.TrimSpace(c.Get(fiber.HeaderOrigin))
		if origin == "" || safeMethod(c.Method()) {
			return c.Next()
		}
		if !originAllowed(origin, allowedOrigins) {
			return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
		}
		if mode == CSRFModeOrigin {
			return c.Next()
		}

		cookie, header := c.Cookies(CSRFCookie), c.Get(CSRFHeader)
		if cookie == "" || header == "" {
			return httpx.Forbidden(c, "csrf_required", "Missing CSRF token")
		}
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			return httpx.Forbidden(c, "csrf_invalid", "Invalid CSRF token")
		}
		return c.Next()
	}
}

func safeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}
