// Package util contains any functions used across the application that don't match
// any other package
package util

import (
	"crypto/rand"
	"encoding/hex"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idCharset       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordCharset = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateToken returns n random bytes hex encoded
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// NewUserID returns a new random 16 character user ID
func NewUserID() (string, error) {
	return gonanoid.Generate(idCharset, 16)
}

// RandPassword returns a random password of length n. Visually similar
// characters are left out since these get typed in by hand.
func RandPassword(n int) (string, error) {
	return gonanoid.Generate(passwordCharset, n)
}
