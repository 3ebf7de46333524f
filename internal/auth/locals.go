package auth

import "github.com/gofiber/fiber/v2"

const identityLocal = "ledgerd.identity"

// SetIdentity attaches the verified caller to the request.
func SetIdentity(c *fiber.Ctx, id Identity) {
	c.Locals(identityLocal, id)
}

// IdentityFrom returns the caller attached by the token middleware.
func IdentityFrom(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(identityLocal).(Identity)
	return id, ok && id.UserID != ""
}
