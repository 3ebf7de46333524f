package transfer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/dberr"
	"github.com/congo-pay/ledgerd/internal/history"
	"github.com/congo-pay/ledgerd/internal/logging"
	"github.com/congo-pay/ledgerd/internal/notification"
)

type testNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type failingHistory struct{ calls atomic.Int32 }

func (h *failingHistory) Append(context.Context, history.Entry) (history.Entry, error) {
	h.calls.Add(1)
	return history.Entry{}, dberr.Wrap("history.append", errors.New("connection refused"))
}

func (h *failingHistory) List(context.Context, string, history.Query) (history.Page, error) {
	return history.Page{}, nil
}

type brokenStore struct{ account.Store }

func (brokenStore) Move(context.Context, account.Movement) (account.MoveResult, error) {
	return account.MoveResult{}, dberr.Wrap("account.move", context.DeadlineExceeded)
}

func seedAccounts(t *testing.T, store account.Store, balances map[string]account.Balance) {
	t.Helper()
	for key, bal := range balances {
		if err := store.Create(context.Background(), account.NewAccount{Key: key, Name: key, InitialBalance: bal}); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func balance(t *testing.T, store account.Store, key string) account.Balance {
	t.Helper()
	acct, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return acct.Balance
}

func newEngine(store account.Store, hist history.Store, n notification.Notifier) *Engine {
	return NewEngine(store, hist, n, logging.Discard(), time.Hour)
}

func TestExecuteScenario(t *testing.T) {
	store := account.NewMemoryStore()
	hist := history.NewMemoryStore()
	notifier := &testNotifier{}
	seedAccounts(t, store, map[string]account.Balance{"A": 100, "B": 50})
	engine := newEngine(store, hist, notifier)
	ctx := context.Background()

	receipt, err := engine.Execute(ctx, Request{Source: "A", Target: "B", Amount: 30})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if receipt.SourceBalance != 70 || receipt.TargetBalance != 80 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.TransferID == "" {
		t.Fatal("expected a generated transfer id")
	}

	rejected := []struct {
		req  Request
		want error
	}{
		{Request{Source: "A", Target: "B", Amount: 1000}, ErrInsufficientFunds},
		{Request{Source: "A", Target: "A", Amount: 10}, ErrSameAccount},
		{Request{Source: "A", Target: "nonexistent", Amount: 5}, ErrTargetNotFound},
		{Request{Source: "A", Target: "B", Amount: 0}, ErrInvalidAmount},
	}
	for _, tc := range rejected {
		if _, err := engine.Execute(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%+v: expected %v, got %v", tc.req, tc.want, err)
		}
	}
	if a, b := balance(t, store, "A"), balance(t, store, "B"); a != 70 || b != 80 {
		t.Fatalf("rejections changed balances to %d/%d", a, b)
	}

	debits, _ := hist.List(ctx, "A", history.Query{})
	credits, _ := hist.List(ctx, "B", history.Query{})
	if len(debits.Entries) != 1 || len(credits.Entries) != 1 {
		t.Fatalf("expected one entry per side, got %d/%d", len(debits.Entries), len(credits.Entries))
	}
	if d := debits.Entries[0]; d.Direction != history.Debit || d.BalanceAfter != 70 || d.TransferID != receipt.TransferID {
		t.Fatalf("unexpected debit %+v", d)
	}
	if c := credits.Entries[0]; c.Direction != history.Credit || c.BalanceAfter != 80 || c.Amount != 30 {
		t.Fatalf("unexpected credit %+v", c)
	}

	if len(notifier.sent) != 1 || notifier.sent[0].Destination != "B" || notifier.sent[0].Kind != notification.KindTransferReceived {
		t.Fatalf("expected a single notification to B, got %+v", notifier.sent)
	}
}

func TestExecuteValidatesBeforeStore(t *testing.T) {
	engine := newEngine(brokenStore{}, nil, nil)
	if _, err := engine.Execute(context.Background(), Request{Source: "x", Target: "x", Amount: 5}); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if _, err := engine.Execute(context.Background(), Request{Source: "x", Target: "x"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount first, got %v", err)
	}
}

func TestExecuteDuplicateTransferID(t *testing.T) {
	store := account.NewMemoryStore()
	seedAccounts(t, store, map[string]account.Balance{"A": 100, "B": 0})
	engine := newEngine(store, history.NewMemoryStore(), nil)
	ctx := context.Background()

	req := Request{Source: "A", Target: "B", Amount: 25, TransferID: "client-1"}
	receipt, err := engine.Execute(ctx, req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if receipt.TransferID != "client-1" {
		t.Fatalf("expected supplied id, got %s", receipt.TransferID)
	}
	if _, err := engine.Execute(ctx, req); !errors.Is(err, ErrDuplicateTransfer) {
		t.Fatalf("expected ErrDuplicateTransfer, got %v", err)
	}
	if balance(t, store, "A") != 75 {
		t.Fatal("duplicate moved funds")
	}
}

func TestExecuteOverflow(t *testing.T) {
	store := account.NewMemoryStore()
	seedAccounts(t, store, map[string]account.Balance{"A": 10, "B": account.MaxBalance})
	engine := newEngine(store, nil, nil)

	if _, err := engine.Execute(context.Background(), Request{Source: "A", Target: "B", Amount: 1}); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	if balance(t, store, "A") != 10 {
		t.Fatal("overflow must not debit the source")
	}
}

func TestExecuteHistoryFailureKeepsCommit(t *testing.T) {
	store := account.NewMemoryStore()
	seedAccounts(t, store, map[string]account.Balance{"A": 100, "B": 0})
	hist := &failingHistory{}
	notifier := &testNotifier{err: errors.New("downstream unavailable")}
	engine := newEngine(store, hist, notifier)

	receipt, err := engine.Execute(context.Background(), Request{Source: "A", Target: "B", Amount: 40})
	if err != nil {
		t.Fatalf("history failure must not fail the transfer: %v", err)
	}
	if receipt.SourceBalance != 60 || balance(t, store, "B") != 40 {
		t.Fatalf("commit lost: %+v", receipt)
	}
	if hist.calls.Load() != 2 {
		t.Fatalf("expected both entries attempted, got %d", hist.calls.Load())
	}
}

func TestExecuteStoreFailurePropagates(t *testing.T) {
	engine := newEngine(brokenStore{}, nil, nil)
	_, err := engine.Execute(context.Background(), Request{Source: "A", Target: "B", Amount: 1})
	if !errors.Is(err, dberr.ErrTimeout) {
		t.Fatalf("expected timeout database error, got %v", err)
	}
}

func TestExecuteConcurrentNeverOverdraws(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := account.NewRedisStore(client, time.Second)
	seedAccounts(t, store, map[string]account.Balance{"payer": 500, "x": 0, "y": 0})
	engine := newEngine(store, history.NewRedisStore(client, time.Second), nil)

	const attempts = 20
	var committed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := "x"
			if i%2 == 1 {
				target = "y"
			}
			_, err := engine.Execute(context.Background(), Request{Source: "payer", Target: target, Amount: 50})
			switch {
			case err == nil:
				committed.Add(1)
			case !errors.Is(err, ErrInsufficientFunds):
				t.Errorf("transfer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if committed.Load() != 10 {
		t.Fatalf("expected 10 committed transfers, got %d", committed.Load())
	}
	total := balance(t, store, "payer") + balance(t, store, "x") + balance(t, store, "y")
	if total != 500 || balance(t, store, "payer") != 0 {
		t.Fatalf("conservation broken: total=%d payer=%d", total, balance(t, store, "payer"))
	}
}
