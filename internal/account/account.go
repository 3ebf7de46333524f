package account

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// Balance is an amount of money in minor units. It is limited to 32 bits so
// every value stays exact inside the store's Lua number type.
type Balance uint32

// MaxBalance is the largest representable balance; credits past it fail.
const MaxBalance Balance = math.MaxUint32

var (
	// ErrNotFound indicates no account is bound to the identity key.
	ErrNotFound = errors.New("account not found")
	// ErrAlreadyExists indicates the identity key is already taken.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInvalidKey rejects empty identity keys.
	ErrInvalidKey = errors.New("account key must not be empty")
	// ErrInvalidAmount rejects zero amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrOverflow occurs when a credit would exceed MaxBalance.
	ErrOverflow = errors.New("balance would overflow")

	// ErrSourceNotFound is returned by Move when the debited account is missing.
	ErrSourceNotFound = errors.New("source account not found")
	// ErrTargetNotFound is returned by Move when the credited account is missing.
	ErrTargetNotFound = errors.New("target account not found")
	// ErrInsufficientFunds occurs when the source balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameAccount rejects moves from an account to itself.
	ErrSameAccount = errors.New("source and target must differ")
	// ErrDuplicateTransfer indicates the idempotency key was already used.
	ErrDuplicateTransfer = errors.New("duplicate transfer")
)

// Account is a stored account record.
type Account struct {
	Key       string
	Name      string
	Balance   Balance
	Digest    []byte
	Salt      []byte
	CreatedAt time.Time
}

// NewAccount captures what is needed to create an account.
type NewAccount struct {
	Key            string
	Name           string
	InitialBalance Balance
	Digest         []byte
	Salt           []byte
}

// Movement describes a debit of Source and credit of Target by Amount. When
// IdempotencyKey is set, a second movement with the same key is refused for
// IdempotencyTTL.
type Movement struct {
	Source         string
	Target         string
	Amount         Balance
	IdempotencyKey string
	IdempotencyTTL time.Duration
}

// MoveResult carries the balances right after a committed movement.
type MoveResult struct {
	SourceBalance Balance
	TargetBalance Balance
}

// Store is the contract the ledger requires from its key-value backend. Every
// method is a single atomic unit against the backend.
type Store interface {
	Create(ctx context.Context, acct NewAccount) error
	Get(ctx context.Context, key string) (Account, error)
	Deposit(ctx context.Context, key string, amount Balance) (Balance, error)
	Move(ctx context.Context, m Movement) (MoveResult, error)
}

// NormalizeKey maps a user-supplied identity key to its stored form: trimmed
// and lowercased.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func validateMovement(m Movement) error {
	if m.Source == "" || m.Target == "" {
		return ErrInvalidKey
	}
	if m.Amount == 0 {
		return ErrInvalidAmount
	}
	if m.Source == m.Target {
		return ErrSameAccount
	}
	return nil
}
