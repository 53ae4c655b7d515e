package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const MinSecretLength = 8

var ErrSecretTooShort = errors.New("secret must be at least 8 characters")

// HashSecret hashes a credential secret for storage.
func HashSecret(secret string) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrSecretTooShort
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckSecret reports whether secret matches hash.
func CheckSecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
