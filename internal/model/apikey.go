package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GenerateAPIKey creates a new random key for the built-in ApiKey model
// and returns the plaintext alongside its bcrypt hash. Only the hash is
// stored; the plaintext is shown once at creation.
func GenerateAPIKey() (plaintext, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating api key: %w", err)
	}
	plaintext = "fk_" + hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing api key: %w", err)
	}
	return plaintext, string(hashed), nil
}

// VerifyAPIKey checks a presented key against a stored hash
func VerifyAPIKey(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
