package account

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	transfers map[string]time.Time
	now       func() time.Time
}

// NewMemoryStore creates a concurrency-safe in-memory store for tests and
// local development.
func NewMemoryStore() Store {
	return &memoryStore{
		accounts:  make(map[string]Account),
		transfers: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (s *memoryStore) Create(_ context.Context, acct NewAccount) error {
	if acct.Key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acct.Key]; exists {
		return ErrAlreadyExists
	}
	s.accounts[acct.Key] = Account{
		Key:       acct.Key,
		Name:      acct.Name,
		Balance:   acct.InitialBalance,
		Digest:    append([]byte(nil), acct.Digest...),
		Salt:      append([]byte(nil), acct.Salt...),
		CreatedAt: s.now().UTC(),
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[key]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (s *memoryStore) Deposit(_ context.Context, key string, amount Balance) (Balance, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[key]
	if !ok {
		return 0, ErrNotFound
	}
	if acct.Balance > MaxBalance-amount {
		return 0, ErrOverflow
	}
	acct.Balance += amount
	s.accounts[key] = acct
	return acct.Balance, nil
}

func (s *memoryStore) Move(_ context.Context, m Movement) (MoveResult, error) {
	if err := validateMovement(m); err != nil {
		return MoveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dedupKey := m.Source + "\x00" + m.IdempotencyKey
	if m.IdempotencyKey != "" {
		if expires, seen := s.transfers[dedupKey]; seen && now.Before(expires) {
			return MoveResult{}, ErrDuplicateTransfer
		}
	}

	source, ok := s.accounts[m.Source]
	if !ok {
		return MoveResult{}, ErrSourceNotFound
	}
	if source.Balance < m.Amount {
		return MoveResult{}, ErrInsufficientFunds
	}
	target, ok := s.accounts[m.Target]
	if !ok {
		return MoveResult{}, ErrTargetNotFound
	}
	if target.Balance > MaxBalance-m.Amount {
		return MoveResult{}, ErrOverflow
	}

	source.Balance -= m.Amount
	target.Balance += m.Amount
	s.accounts[m.Source] = source
	s.accounts[m.Target] = target

	if m.IdempotencyKey != "" {
		ttl := m.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		s.transfers[dedupKey] = now.Add(ttl)
	}

	return MoveResult{SourceBalance: source.Balance, TargetBalance: target.Balance}, nil
}
