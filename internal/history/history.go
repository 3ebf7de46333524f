// Package history keeps the append-only, per-account record of committed
// transfers.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/congo-pay/ledgerd/internal/account"
)

const (
	// DefaultLimit is used when a query does not ask for a page size.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 500
)

// ErrInvalidEntry rejects entries without an account or transfer id.
var ErrInvalidEntry = errors.New("history entry is incomplete")

// Direction tells whether an entry debited or credited its account.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Entry is one immutable history record. Seq is assigned by the store and is
// strictly increasing per account, starting at 1.
type Entry struct {
	Seq          uint64          `json:"seq"`
	Account      string          `json:"account"`
	TransferID   string          `json:"transfer_id"`
	Source       string          `json:"source"`
	Target       string          `json:"target"`
	Amount       account.Balance `json:"amount"`
	Direction    Direction       `json:"direction"`
	BalanceAfter account.Balance `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Order selects the listing direction.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// ParseOrder maps the query-string form to an Order. Empty means OldestFirst.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "oldest", "asc":
		return OldestFirst, nil
	case "newest", "desc":
		return NewestFirst, nil
	default:
		return OldestFirst, fmt.Errorf("unknown order %q", s)
	}
}

// Query selects a page of entries. Cursor is an exclusive sequence bound: the
// page starts after it for OldestFirst and before it for NewestFirst. A zero
// Cursor starts from the oldest or newest entry respectively.
type Query struct {
	Cursor uint64
	Limit  int
	Order  Order
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}

// Page is one slice of an account's history. NextCursor is zero once the
// listing is exhausted.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor uint64  `json:"next_cursor,omitempty"`
}

// Store persists history entries.
type Store interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context, acct string, q Query) (Page, error)
}

func validate(e Entry) error {
	if e.Account == "" || e.TransferID == "" {
		return ErrInvalidEntry
	}
	return nil
}

// paginate trims a fetch of limit+1 rows into a page.
func paginate(entries []Entry, limit int) Page {
	if len(entries) <= limit {
		if entries == nil {
			entries = []Entry{}
		}
		return Page{Entries: entries}
	}
	entries = entries[:limit]
	return Page{Entries: entries, NextCursor: entries[limit-1].Seq}
}
