package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor used for every stored password.
const Cost = 10

// MaxPasswordBytes is the longest input bcrypt will hash.
const MaxPasswordBytes = 72

type Hasher struct {
	cost int
}

func NewHasher() *Hasher {
	return &Hasher{cost: Cost}
}

// Hash returns a salted bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether plain matches hash. A mismatch is not an error;
// a malformed hash is.
func (h *Hasher) Verify(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("compare password: %w", err)
}

// HashPassword hashes a plain text password with the default hasher.
func HashPassword(plain string) (string, error) {
	return NewHasher().Hash(plain)
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, plain string) (bool, error) {
	return NewHasher().Verify(plain, hash)
}
