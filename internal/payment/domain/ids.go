package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const (
	SystemIDPrefix = "pay_"

	PublicIDLength   = 32
	publicIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// IDGenerator produces both identifiers of a payment.
type IDGenerator interface {
	SystemID() (string, error)
	PublicID() (string, error)
}

type RandomIDs struct{}

func (RandomIDs) SystemID() (string, error) { return NewSystemID() }
func (RandomIDs) PublicID() (string, error) { return NewPublicID() }

// NewSystemID returns "pay_" followed by a UUIDv7 in hex. The leading
// 48 bits are the unix millisecond timestamp, the rest is random.
func NewSystemID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("system id: %w", err)
	}
	return SystemIDPrefix + hex.EncodeToString(u[:]), nil
}

// NewPublicID returns a 32 character bearer token over [A-Za-z0-9] read
// from crypto/rand. Bytes >= 248 are rejected so every symbol is equally likely.
func NewPublicID() (string, error) {
	const maxByte = 256 - 256%len(publicIDAlphabet)

	out := make([]byte, 0, PublicIDLength)
	buf := make([]byte, PublicIDLength+8)
	for len(out) < PublicIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("public id: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, publicIDAlphabet[int(b)%len(publicIDAlphabet)])
			if len(out) == PublicIDLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidPublicID reports whether s has the shape of a public id.
func ValidPublicID(s string) bool {
	if len(s) != PublicIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
