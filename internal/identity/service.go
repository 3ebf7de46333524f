package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/congo-pay/ledgerd/internal/account"
	"github.com/congo-pay/ledgerd/internal/credential"
)

var (
	// ErrInvalidCredentials hides whether the user or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = account.ErrAlreadyExists
)

// Service manages account registration and password checks.
type Service struct {
	accounts account.Store
	codec    *credential.Codec
}

// NewService creates a new identity service.
func NewService(accounts account.Store, codec *credential.Codec) *Service {
	return &Service{accounts: accounts, codec: codec}
}

// Register creates an empty account keyed by the normalized email.
func (s *Service) Register(ctx context.Context, reg Registration) (account.Account, error) {
	email := normalize(reg.Email)
	if email == "" {
		return account.Account{}, account.ErrInvalidKey
	}
	cred, err := s.codec.Hash(reg.Password)
	if err != nil {
		return account.Account{}, err
	}
	if err := s.accounts.Create(ctx, account.NewAccount{
		Key:    email,
		Name:   strings.TrimSpace(reg.Name),
		Digest: cred.Digest,
		Salt:   cred.Salt,
	}); err != nil {
		return account.Account{}, err
	}
	return s.accounts.Get(ctx, email)
}

// Authenticate verifies the password stored for username.
func (s *Service) Authenticate(ctx context.Context, username, password string) (account.Account, error) {
	acct, err := s.accounts.Get(ctx, normalize(username))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, ErrInvalidCredentials
		}
		return account.Account{}, err
	}
	if !s.codec.Verify(password, acct.Digest, acct.Salt) {
		return account.Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

func normalize(email string) string {
	return account.NormalizeKey(email)
}
