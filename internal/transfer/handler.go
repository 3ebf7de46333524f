package transfer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/auth"
	"github.com/congo-pay/ledgerd/internal/httpx"
)

// Handler exposes the transfer endpoint.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a transfer handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type transferRequest struct {
	Target     string `json:"target" validate:"required,max=320"`
	Amount     uint64 `json:"amount" validate:"max=4294967295"`
	TransferID string `json:"transfer_id" validate:"omitempty,max=128,printascii"`
}

// Transfer moves funds from the authenticated caller to the target account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, ok := auth.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req transferRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	req.Target = account.NormalizeKey(req.Target)

	receipt, err := h.engine.Execute(c.UserContext(), Request{
		Source:     caller.UserID,
		Target:     req.Target,
		Amount:     account.Balance(req.Amount),
		TransferID: req.TransferID,
	})
	if err != nil {
		return mapError(err)
	}
	return httpx.OK(c, http.StatusOK, fiber.Map{
		"transfer_id":  receipt.TransferID,
		"target":       receipt.Target,
		"amount":       receipt.Amount,
		"balance":      receipt.SourceBalance,
		"completed_at": receipt.CompletedAt,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, ErrSameAccount):
		return fiber.NewError(http.StatusBadRequest, "cannot transfer to yourself")
	case errors.Is(err, ErrInvalidAccount):
		return fiber.NewError(http.StatusBadRequest, "target is required")
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrTargetNotFound):
		return fiber.NewError(http.StatusNotFound, "target account not found")
	case errors.Is(err, ErrSourceNotFound):
		return fiber.NewError(http.StatusNotFound, "source account not found")
	case errors.Is(err, ErrAmountOverflow):
		return fiber.NewError(http.StatusConflict, "target balance would overflow")
	case errors.Is(err, ErrDuplicateTransfer):
		return fiber.NewError(http.StatusConflict, "duplicate transfer")
	default:
		return err
	}
}
