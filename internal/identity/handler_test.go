package identity

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/auth"
	"github.com/congo-pay/ledgerd/internal/config"
	"github.com/congo-pay/ledgerd/internal/httpx"
	"github.com/congo-pay/ledgerd/internal/logging"
)

func setupApp(t *testing.T) (*fiber.App, *auth.Authority) {
	t.Helper()
	svc, _ := newTestService()
	tokens, err := auth.NewAuthority(config.Auth{Algorithm: "HS256", Secret: "test-secret-test-secret", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	h := NewHandler(svc, tokens, func(user string) bool { return user == "root@example.com" }, logging.Discard())

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logging.Discard())})
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	return app, tokens
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return resp.StatusCode, decoded
}

func TestRegisterThenLogin(t *testing.T) {
	app, tokens := setupApp(t)

	status, body := post(t, app, "/register", `{"email":"root@example.com","name":"Root","key":"s3cret-pass"}`)
	if status != http.StatusCreated || body["success"] != true {
		t.Fatalf("register: %d %v", status, body)
	}

	status, body = post(t, app, "/login", `{"username":"root@example.com","key":"s3cret-pass"}`)
	if status != http.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	raw, _ := body["token"].(string)
	id, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if id.UserID != "root@example.com" || !id.IsAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestRegisterConflictAndValidation(t *testing.T) {
	app, _ := setupApp(t)

	if status, _ := post(t, app, "/register", `{"email":"a@example.com","name":"A","key":"password1"}`); status != http.StatusCreated {
		t.Fatalf("first register: %d", status)
	}
	if status, body := post(t, app, "/register", `{"email":"a@example.com","name":"A","key":"password1"}`); status != http.StatusConflict || body["success"] != false {
		t.Fatalf("expected conflict, got %d %v", status, body)
	}

	status, body := post(t, app, "/register", `{"email":"not-an-email","name":"A","key":"short"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	details, _ := body["details"].(map[string]any)
	if details["email"] == nil || details["key"] == nil {
		t.Fatalf("expected email and key details, got %v", details)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app, _ := setupApp(t)
	post(t, app, "/register", `{"email":"b@example.com","name":"B","key":"password1"}`)

	if status, body := post(t, app, "/login", `{"username":"b@example.com","key":"password2"}`); status != http.StatusUnauthorized || body["error"] != "invalid username or password" {
		t.Fatalf("expected 401, got %d %v", status, body)
	}
	if status, _ := post(t, app, "/login", `{"username":"ghost@example.com","key":"password1"}`); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", status)
	}
}
