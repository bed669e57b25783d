package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// kdfSalt domain-separates credential-store keys.
var kdfSalt = []byte("resqwave/credstore/v1")

// NewAEADFromPassphrase derives an AES-256-GCM cipher from a device passphrase
// with argon2id.
func NewAEADFromPassphrase(passphrase string) (cipher.AEAD, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	key := argon2.IDKey([]byte(passphrase), kdfSalt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}
