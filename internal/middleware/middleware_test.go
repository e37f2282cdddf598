package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, role string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthRequired(t *testing.T) {
	valid := signToken(t, testSecret, "user-1", "", time.Now().Add(time.Hour))
	expired := signToken(t, testSecret, "user-1", "", time.Now().Add(-time.Hour))
	foreign := signToken(t, "other", "user-1", "", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer " + valid, "", fiber.StatusOK},
		{"query token", "", valid, fiber.StatusOK},
		{"missing", "", "", fiber.StatusUnauthorized},
		{"malformed header", "Token " + valid, "", fiber.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", fiber.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, "", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", AuthRequired(testSecret), func(c *fiber.Ctx) error {
				return c.SendString(c.Locals("userID").(string))
			})
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := signToken(t, testSecret, "root", "admin", time.Now().Add(time.Hour))
	member := signToken(t, testSecret, "user-1", "", time.Now().Add(time.Hour))

	app := fiber.New()
	app.Post("/admin", AuthRequired(testSecret), RequireRole("admin"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for token, want := range map[string]int{admin: fiber.StatusNoContent, member: fiber.StatusForbidden} {
		req := httptest.NewRequest("POST", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("status = %d, want %d", resp.StatusCode, want)
		}
	}
}

func TestCSRFRequired(t *testing.T) {
	allowed := SplitCSV(" https://app.example.com , ")

	tests := []struct {
		name   string
		mode   string
		method string
		origin string
		cookie string
		header string
		want   int
	}{
		{"get passes", "token", "GET", "https://evil.example", "", "", fiber.StatusOK},
		{"no origin passes", "token", "POST", "", "", "", fiber.StatusOK},
		{"bad origin", "token", "POST", "https://evil.example", "", "", fiber.StatusForbidden},
		{"missing token", "token", "POST", "https://app.example.com", "", "", fiber.StatusForbidden},
		{"mismatched token", "token", "POST", "https://app.example.com", "a", "b", fiber.StatusForbidden},
		{"matching token", "token", "POST", "https://app.example.com", "a", "a", fiber.StatusOK},
		{"origin mode", "origin", "POST", "https://app.example.com", "", "", fiber.StatusOK},
		{"off", "off", "POST", "https://evil.example", "", "", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.All("/", CSRFRequired(tt.mode, allowed), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.cookie != "" {
				req.Header.Set("Cookie", "om_csrf="+tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set("X-OM-CSRF", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
