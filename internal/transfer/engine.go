// Package transfer moves funds between accounts and records the outcome.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/dberr"
	"github.com/congo-pay/ledgerd/internal/history"
	"github.com/congo-pay/ledgerd/internal/metrics"
	"github.com/congo-pay/ledgerd/internal/notification"
)

// Transfer failures. They are the account store's sentinels, so errors.Is
// works against either name.
var (
	ErrInvalidAmount     = account.ErrInvalidAmount
	ErrInvalidAccount    = account.ErrInvalidKey
	ErrSameAccount       = account.ErrSameAccount
	ErrSourceNotFound    = account.ErrSourceNotFound
	ErrTargetNotFound    = account.ErrTargetNotFound
	ErrInsufficientFunds = account.ErrInsufficientFunds
	ErrAmountOverflow    = account.ErrOverflow
	ErrDuplicateTransfer = account.ErrDuplicateTransfer
)

// Request asks for Amount to move from Source to Target. A non-empty
// TransferID makes the request idempotent for the engine's dedup window.
type Request struct {
	Source     string
	Target     string
	Amount     account.Balance
	TransferID string
}

// Receipt describes a committed transfer.
type Receipt struct {
	TransferID    string          `json:"transfer_id"`
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	Amount        account.Balance `json:"amount"`
	SourceBalance account.Balance `json:"source_balance"`
	TargetBalance account.Balance `json:"target_balance"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// Engine executes transfers against the account store. Balance changes are
// decided by a single store call; history and notifications follow a commit
// and never undo it.
type Engine struct {
	accounts       account.Store
	history        history.Store
	notifier       notification.Notifier
	logger         *slog.Logger
	idempotencyTTL time.Duration
	now            func() time.Time
}

// NewEngine wires a transfer engine. history and notifier may be nil.
func NewEngine(accounts account.Store, hist history.Store, notifier notification.Notifier, logger *slog.Logger, idempotencyTTL time.Duration) *Engine {
	return &Engine{
		accounts:       accounts,
		history:        hist,
		notifier:       notifier,
		logger:         logger,
		idempotencyTTL: idempotencyTTL,
		now:            time.Now,
	}
}

// Execute validates and commits a transfer. Store failures are returned
// as-is and never retried, since the outcome of a timed-out call is unknown.
func (e *Engine) Execute(ctx context.Context, req Request) (Receipt, error) {
	if req.Amount == 0 {
		metrics.RecordTransfer(metrics.OutcomeRejected, 0)
		return Receipt{}, ErrInvalidAmount
	}
	if req.Source == "" || req.Target == "" {
		metrics.RecordTransfer(metrics.OutcomeRejected, 0)
		return Receipt{}, ErrInvalidAccount
	}
	if req.Source == req.Target {
		metrics.RecordTransfer(metrics.OutcomeRejected, 0)
		return Receipt{}, ErrSameAccount
	}

	transferID := req.TransferID
	if transferID == "" {
		transferID = uuid.NewString()
	}

	res, err := e.accounts.Move(ctx, account.Movement{
		Source:         req.Source,
		Target:         req.Target,
		Amount:         req.Amount,
		IdempotencyKey: req.TransferID,
		IdempotencyTTL: e.idempotencyTTL,
	})
	if err != nil {
		if dberr.Is(err) {
			metrics.RecordTransfer(metrics.OutcomeFailed, 0)
			e.logger.Error("transfer failed",
				slog.String("transfer_id", transferID),
				slog.String("source", req.Source),
				slog.String("target", req.Target),
				slog.Any("error", err),
			)
		} else {
			metrics.RecordTransfer(metrics.OutcomeRejected, 0)
		}
		return Receipt{}, err
	}
	metrics.RecordTransfer(metrics.OutcomeCommitted, uint32(req.Amount))

	receipt := Receipt{
		TransferID:    transferID,
		Source:        req.Source,
		Target:        req.Target,
		Amount:        req.Amount,
		SourceBalance: res.SourceBalance,
		TargetBalance: res.TargetBalance,
		CompletedAt:   e.now().UTC(),
	}
	e.logger.Info("transfer committed",
		slog.String("transfer_id", transferID),
		slog.String("source", req.Source),
		slog.String("target", req.Target),
		slog.Uint64("amount", uint64(req.Amount)),
	)

	// The transfer is committed; a caller hanging up must not drop its history.
	after := context.WithoutCancel(ctx)
	e.appendHistory(after, receipt)
	e.notify(after, receipt)

	return receipt, nil
}

func (e *Engine) appendHistory(ctx context.Context, r Receipt) {
	if e.history == nil {
		return
	}
	entries := []history.Entry{
		{
			Account:      r.Source,
			TransferID:   r.TransferID,
			Source:       r.Source,
			Target:       r.Target,
			Amount:       r.Amount,
			Direction:    history.Debit,
			BalanceAfter: r.SourceBalance,
			CreatedAt:    r.CompletedAt,
		},
		{
			Account:      r.Target,
			TransferID:   r.TransferID,
			Source:       r.Source,
			Target:       r.Target,
			Amount:       r.Amount,
			Direction:    history.Credit,
			BalanceAfter: r.TargetBalance,
			CreatedAt:    r.CompletedAt,
		},
	}
	for _, entry := range entries {
		if _, err := e.history.Append(ctx, entry); err != nil {
			metrics.RecordHistoryAppendFailure()
			e.logger.Error("history append failed after commit",
				slog.String("transfer_id", r.TransferID),
				slog.String("account", entry.Account),
				slog.String("direction", string(entry.Direction)),
				slog.Any("error", err),
			)
		}
	}
}

func (e *Engine) notify(ctx context.Context, r Receipt) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: r.Target,
		Body:        fmt.Sprintf("You received %d from %s", r.Amount, r.Source),
		TransferID:  r.TransferID,
		Amount:      uint32(r.Amount),
	})
	if err != nil {
		e.logger.Warn("notification failed", slog.String("transfer_id", r.TransferID), slog.Any("error", err))
	}
}
