// Package crypto issues room tickets: keyed BLAKE2b tags binding a user to
// the room they were matched into. The session service holding the same key
// can check a ticket without calling back into the matcher.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const (
	MinKeySize = 16
	MaxKeySize = blake2b.Size // 64
)

var (
	ErrKeySize       = fmt.Errorf("crypto: key must be %d-%d bytes", MinKeySize, MaxKeySize)
	ErrInvalidTicket = errors.New("crypto: invalid ticket")
)

// GenerateKey generates a random 32-byte ticket key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// ParseKey decodes a hex-encoded ticket key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	if len(key) < MinKeySize || len(key) > MaxKeySize {
		return nil, ErrKeySize
	}
	return key, nil
}

// Ticketer issues and verifies room tickets. A nil *Ticketer issues empty
// tickets.
type Ticketer struct {
	key []byte
}

// NewTicketer creates a Ticketer with the given key.
func NewTicketer(key []byte) (*Ticketer, error) {
	if len(key) < MinKeySize || len(key) > MaxKeySize {
		return nil, ErrKeySize
	}
	return &Ticketer{key: append([]byte(nil), key...)}, nil
}

func (t *Ticketer) tag(roomID, userID string) []byte {
	h, err := blake2b.New256(t.key)
	if err != nil {
		// Key length is checked in NewTicketer.
		panic("crypto: blake2b: " + err.Error())
	}
	h.Write([]byte(roomID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return h.Sum(nil)
}

// Issue returns the hex ticket for userID in roomID.
func (t *Ticketer) Issue(roomID, userID string) string {
	if t == nil {
		return ""
	}
	return hex.EncodeToString(t.tag(roomID, userID))
}

// Verify checks a ticket in constant time.
func (t *Ticketer) Verify(roomID, userID, ticket string) error {
	if t == nil {
		return ErrInvalidTicket
	}
	got, err := hex.DecodeString(ticket)
	if err != nil {
		return ErrInvalidTicket
	}
	if subtle.ConstantTimeCompare(got, t.tag(roomID, userID)) != 1 {
		return ErrInvalidTicket
	}
	return nil
}
