package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/identity"
)

// RegisterIdentityRoutes wires registration and login. Login runs behind the
// rate limiter when one is given.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, rateLimiter fiber.Handler) {
	r.Post("/register", h.Register)
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
}
