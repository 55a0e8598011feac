package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes with bcrypt and still verifies the salted SHA-256
// hashes that older installs stored. The format is sniffed from the stored
// hash prefix, never from configuration.
type PasswordHasher struct {
	cost       int
	legacySalt string
}

func NewPasswordHasher(legacySalt string) *PasswordHasher {
	return &PasswordHasher{cost: bcrypt.DefaultCost, legacySalt: legacySalt}
}

// HashPassword hashes a password using bcrypt
func (ph *PasswordHasher) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), ph.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against its stored hash. The second
// return value reports whether the hash uses the legacy scheme and should
// be rewritten with bcrypt after a successful login.
func (ph *PasswordHasher) VerifyPassword(password, storedHash string) (valid, legacy bool) {
	if strings.HasPrefix(storedHash, "$2a$") || strings.HasPrefix(storedHash, "$2b$") || strings.HasPrefix(storedHash, "$2y$") {
		err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
		return err == nil, false
	}
	return ph.verifyLegacy(password, storedHash), true
}

func (ph *PasswordHasher) verifyLegacy(password, storedHash string) bool {
	sum := sha256.Sum256([]byte(password + ph.legacySalt))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(storedHash))) == 1
}
