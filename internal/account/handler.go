package account

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/auth"
	"github.com/congo-pay/ledgerd/internal/httpx"
	"github.com/congo-pay/ledgerd/internal/metrics"
	"github.com/congo-pay/ledgerd/internal/notification"
)

// Handler exposes balance lookup and administrative deposits.
type Handler struct {
	store    Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler builds an account HTTP handler. notifier may be nil.
func NewHandler(store Store, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{store: store, notifier: notifier, logger: logger}
}

type depositRequest struct {
	Target string `json:"target" validate:"required,max=320"`
	Amount uint64 `json:"amount" validate:"required,max=4294967295"`
}

// Show returns the caller's account.
func (h *Handler) Show(c *fiber.Ctx) error {
	caller, ok := auth.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	acct, err := h.store.Get(c.UserContext(), caller.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return err
	}
	return httpx.OK(c, http.StatusOK, fiber.Map{
		"account":    acct.Key,
		"name":       acct.Name,
		"balance":    acct.Balance,
		"created_at": acct.CreatedAt,
	})
}

// Deposit credits any account. Callers must be administrators.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	caller, ok := auth.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if !caller.IsAdmin {
		return fiber.NewError(http.StatusForbidden, "admin only")
	}
	var req depositRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if req.Target = NormalizeKey(req.Target); req.Target == "" {
		return &httpx.InvalidRequest{Details: map[string]string{"target": "is required"}}
	}

	balance, err := h.store.Deposit(c.UserContext(), req.Target, Balance(req.Amount))
	if err != nil {
		outcome, mapped := metrics.OutcomeRejected, err
		switch {
		case errors.Is(err, ErrNotFound):
			mapped = fiber.NewError(http.StatusNotFound, "target account not found")
		case errors.Is(err, ErrOverflow):
			mapped = fiber.NewError(http.StatusConflict, "target balance would overflow")
		case errors.Is(err, ErrInvalidAmount):
			mapped = fiber.NewError(http.StatusBadRequest, "amount must be positive")
		default:
			outcome = metrics.OutcomeFailed
		}
		metrics.RecordDeposit(outcome)
		return mapped
	}
	metrics.RecordDeposit(metrics.OutcomeCommitted)
	h.logger.Info("deposit committed",
		slog.String("admin", caller.UserID),
		slog.String("target", req.Target),
		slog.Uint64("amount", req.Amount),
	)

	if h.notifier != nil {
		err := h.notifier.Send(c.UserContext(), notification.Message{
			Kind:        notification.KindDepositReceived,
			Destination: req.Target,
			Body:        fmt.Sprintf("Your account was credited with %d", req.Amount),
			Amount:      uint32(req.Amount),
		})
		if err != nil {
			h.logger.Warn("notification failed", slog.String("target", req.Target), slog.Any("error", err))
		}
	}

	return httpx.OK(c, http.StatusOK, fiber.Map{
		"target":  req.Target,
		"balance": balance,
	})
}
