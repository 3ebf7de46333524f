package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/dberr"
)

// PostgresStore persists history in PostgreSQL. The schema lives in the
// embedded migrations.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

// NewPostgresStore constructs a Postgres-backed history store. timeout bounds
// every call, including pool acquisition; zero disables the deadline.
func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout, now: time.Now}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Append allocates the account's next sequence and inserts the entry in one
// transaction.
func (s *PostgresStore) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, dberr.Wrap("history.append", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const nextSeq = `
        INSERT INTO ledger_sequences (account, last_seq) VALUES ($1, 1)
        ON CONFLICT (account) DO UPDATE SET last_seq = ledger_sequences.last_seq + 1
        RETURNING last_seq`
	var seq int64
	if err := tx.QueryRow(ctx, nextSeq, e.Account).Scan(&seq); err != nil {
		return Entry{}, dberr.Wrap("history.append", err)
	}

	const insert = `
        INSERT INTO ledger_entries
            (account, seq, transfer_id, source, target, amount, direction, balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.Exec(ctx, insert,
		e.Account, seq, e.TransferID, e.Source, e.Target,
		int64(e.Amount), string(e.Direction), int64(e.BalanceAfter), e.CreatedAt.UTC(),
	); err != nil {
		return Entry{}, dberr.Wrap("history.append", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, dberr.Wrap("history.append", err)
	}
	e.Seq = uint64(seq)
	return e, nil
}

// List pages through an account's entries by sequence.
func (s *PostgresStore) List(ctx context.Context, acct string, q Query) (Page, error) {
	limit := q.limit()
	query, args := listQuery(acct, q, limit+1)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return Page{}, dberr.Wrap("history.list", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit+1)
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.seq, &r.entry.Account, &r.entry.TransferID, &r.entry.Source, &r.entry.Target,
			&r.amount, &r.direction, &r.balance, &r.entry.CreatedAt); err != nil {
			return Page{}, dberr.Wrap("history.list", err)
		}
		e, err := r.decode()
		if err != nil {
			return Page{}, dberr.Corrupt("history.list", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, dberr.Wrap("history.list", err)
	}
	return paginate(entries, limit), nil
}

// entryRow holds the columns that need range checks before they become an
// Entry.
type entryRow struct {
	entry                Entry
	seq, amount, balance int64
	direction            string
}

func (r entryRow) decode() (Entry, error) {
	if r.seq <= 0 {
		return Entry{}, fmt.Errorf("entry sequence %d out of range", r.seq)
	}
	if r.amount <= 0 || r.amount > int64(account.MaxBalance) || r.balance < 0 || r.balance > int64(account.MaxBalance) {
		return Entry{}, fmt.Errorf("entry %d out of range", r.seq)
	}
	switch Direction(r.direction) {
	case Debit, Credit:
	default:
		return Entry{}, fmt.Errorf("entry %d has direction %q", r.seq, r.direction)
	}
	e := r.entry
	e.Seq = uint64(r.seq)
	e.Amount = account.Balance(r.amount)
	e.BalanceAfter = account.Balance(r.balance)
	e.Direction = Direction(r.direction)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func listQuery(acct string, q Query, fetch int) (string, []any) {
	const columns = `SELECT seq, account, transfer_id, source, target, amount, direction, balance_after, created_at
        FROM ledger_entries WHERE account = $1`
	if q.Order == NewestFirst {
		if q.Cursor == 0 {
			return columns + ` ORDER BY seq DESC LIMIT $2`, []any{acct, fetch}
		}
		return columns + ` AND seq < $2 ORDER BY seq DESC LIMIT $3`, []any{acct, int64(q.Cursor), fetch}
	}
	return columns + ` AND seq > $2 ORDER BY seq ASC LIMIT $3`, []any{acct, int64(q.Cursor), fetch}
}
