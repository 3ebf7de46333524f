// Package credential hashes and verifies account passwords with argon2id and
// a per-credential random salt.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the number of random bytes generated per credential.
const SaltSize = 16

// ErrEmptyPassword is returned by Hash for an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// Params tunes the argon2id cost.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams matches the cost used for key derivation elsewhere in the stack.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

// Credential is a stored password digest and the salt it was derived with.
type Credential struct {
	Digest []byte
	Salt   []byte
}

// Codec hashes and verifies passwords. The zero value uses DefaultParams.
type Codec struct {
	params Params
}

// NewCodec builds a codec with the given cost parameters.
func NewCodec(params Params) *Codec {
	return &Codec{params: params}
}

// Hash derives a digest for password under a fresh random salt.
func (c *Codec) Hash(password string) (Credential, error) {
	if password == "" {
		return Credential{}, ErrEmptyPassword
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, fmt.Errorf("generate salt: %w", err)
	}
	return Credential{Digest: c.derive(password, salt), Salt: salt}, nil
}

// Verify recomputes the digest and compares it in constant time. Corrupted or
// empty stored values simply fail verification.
func (c *Codec) Verify(password string, digest, salt []byte) bool {
	if len(digest) == 0 || len(salt) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(c.derive(password, salt), digest) == 1
}

func (c *Codec) derive(password string, salt []byte) []byte {
	p := c.params
	if p == (Params{}) {
		p = DefaultParams
	}
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}
