package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/auth"
	"github.com/congo-pay/ledgerd/internal/credential"
	"github.com/congo-pay/ledgerd/internal/httpx"
)

// Handler exposes registration and login.
type Handler struct {
	service *Service
	tokens  *auth.Authority
	isAdmin func(user string) bool
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler. isAdmin decides the
// is_admin claim of issued tokens.
func NewHandler(service *Service, tokens *auth.Authority, isAdmin func(user string) bool, logger *slog.Logger) *Handler {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Handler{service: service, tokens: tokens, isAdmin: isAdmin, logger: logger}
}

type registerRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
	Name  string `json:"name" validate:"required,max=128"`
	Key   string `json:"key" validate:"required,min=8,max=256"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=320"`
	Key      string `json:"key" validate:"required,max=256"`
}

// Register handles account onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acct, err := h.service.Register(c.UserContext(), Registration{Email: req.Email, Name: req.Name, Password: req.Key})
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			return fiber.NewError(http.StatusConflict, "user already exists")
		case errors.Is(err, credential.ErrEmptyPassword):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return err
		}
	}
	h.logger.Info("account registered", slog.String("account", acct.Key))
	return httpx.OK(c, http.StatusCreated, fiber.Map{
		"account": acct.Key,
		"name":    acct.Name,
		"balance": acct.Balance,
	})
}

// Login validates credentials and returns a signed token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acct, err := h.service.Authenticate(c.UserContext(), req.Username, req.Key)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, "invalid username or password")
		}
		return err
	}
	token, err := h.tokens.Issue(acct.Key, h.isAdmin(acct.Key))
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, fiber.Map{"token": token})
}
