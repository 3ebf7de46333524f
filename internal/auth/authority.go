package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/congo-pay/ledgerd/internal/config"
)

var (
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers bad signatures, wrong algorithms and malformed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// Identity is the trusted caller identity recovered from a verified token.
type Identity struct {
	UserID  string
	IsAdmin bool
}

type claims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Authority issues and verifies signed identity tokens. It holds no session
// state and is safe for concurrent use.
type Authority struct {
	method jwt.SigningMethod
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthority builds an Authority from the startup auth settings.
func NewAuthority(cfg config.Auth) (*Authority, error) {
	method, ok := signingMethods[strings.ToUpper(cfg.Algorithm)]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Authority{
		method: method,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given identity.
func (a *Authority) Issue(userID string, isAdmin bool) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := a.now()
	token := jwt.NewWithClaims(a.method, claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and expiry of raw.
func (a *Authority) Verify(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, ErrMissingToken
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(raw, parsed, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || parsed.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: parsed.UserID, IsAdmin: parsed.IsAdmin}, nil
}

// ParseBearer extracts the raw token from an Authorization header. Both
// "Bearer <token>" and a bare token are accepted.
func ParseBearer(header string) (string, error) {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 0:
		return "", ErrMissingToken
	case strings.EqualFold(fields[0], "bearer"):
		if len(fields) < 2 {
			return "", ErrMissingToken
		}
		return fields[1], nil
	default:
		return fields[0], nil
	}
}
