package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/auth"
)

// TokenAuth verifies the bearer token and attaches the caller identity.
func TokenAuth(tokens *auth.Authority) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := auth.ParseBearer(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		id, err := tokens.Verify(raw)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return fiber.NewError(http.StatusUnauthorized, "token expired")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		auth.SetIdentity(c, id)
		return c.Next()
	}
}

// RequireAdmin rejects callers whose token does not carry is_admin.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		if !id.IsAdmin {
			return fiber.NewError(http.StatusForbidden, "admin only")
		}
		return c.Next()
	}
}
