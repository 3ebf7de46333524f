package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledgerd/internal/logging"
)

func loginApp(t *testing.T, limit int) (*fiber.App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, limit, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app, mr
}

func login(t *testing.T, app *fiber.App, username string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"`+username+`","key":"x"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestLoginRateLimit(t *testing.T) {
	app, mr := loginApp(t, 3)

	for i := 0; i < 3; i++ {
		if resp := login(t, app, "alice@example.com"); resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, resp.StatusCode)
		}
	}
	resp := login(t, app, "Alice@Example.com")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatal("expected Retry-After header")
	}

	if resp := login(t, app, "bob@example.com"); resp.StatusCode != http.StatusOK {
		t.Fatalf("other users must not be limited, got %d", resp.StatusCode)
	}

	mr.FastForward(loginRateWindow)
	if resp := login(t, app, "alice@example.com"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected window reset, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimitFailsOpen(t *testing.T) {
	app, mr := loginApp(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if resp := login(t, app, "alice@example.com"); resp.StatusCode != http.StatusOK {
			t.Fatalf("expected fail-open, got %d", resp.StatusCode)
		}
	}
}
