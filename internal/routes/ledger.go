package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/history"
	"github.com/congo-pay/ledgerd/internal/middleware"
	"github.com/congo-pay/ledgerd/internal/transfer"
)

// RegisterLedgerRoutes wires the account, transfer and history endpoints
// behind authn. idempotency may be nil.
func RegisterLedgerRoutes(r fiber.Router, authn fiber.Handler, accounts *account.Handler, transfers *transfer.Handler, hist *history.Handler, idempotency fiber.Handler) {
	chain := func(handlers ...fiber.Handler) []fiber.Handler {
		out := []fiber.Handler{authn}
		for _, h := range handlers {
			if h != nil {
				out = append(out, h)
			}
		}
		return out
	}

	r.Get("/account", chain(accounts.Show)...)
	r.Get("/history", chain(hist.List)...)
	r.Post("/transfer", chain(idempotency, transfers.Transfer)...)
	r.Post("/reg/deposit", chain(middleware.RequireAdmin(), idempotency, accounts.Deposit)...)
}
