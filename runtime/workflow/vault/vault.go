// Package vault implements credential encryption at rest. Values are sealed
// with AES-256-GCM under a key derived from the 32-byte master secret via
// PBKDF2-SHA256 with a random per-value salt. The engine only ever decrypts
// on demand; plaintext never reaches stored state or status events.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	keyLen     = 32
	iterations = 100_000
)

// ErrDecrypt reports that a stored value could not be opened. Callers
// surface the credential as absent rather than exposing cipher internals to
// clients.
var ErrDecrypt = errors.New("vault: cannot decrypt value")

// Cipher seals and opens credential values under one master secret.
type Cipher struct {
	master []byte
}

// New builds a Cipher from the master secret, supplied as a 64-character
// hex string (32 bytes), matching the ENCRYPTION_KEY environment contract.
func New(hexKey string) (*Cipher, error) {
	master, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("vault: master key is not hex: %w", err)
	}
	if len(master) != keyLen {
		return nil, fmt.Errorf("vault: master key must be %d bytes, got %d", keyLen, len(master))
	}
	return &Cipher{master: master}, nil
}

// Encrypt seals plaintext and returns the hex encoding of
// salt || nonce || ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generate salt: %w", err)
	}
	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return hex.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt. Any malformed or tampered
// input yields ErrDecrypt without further detail.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < saltLen {
		return "", ErrDecrypt
	}
	salt, rest := raw[:saltLen], raw[saltLen:]
	gcm, err := c.aead(salt)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(rest) < gcm.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.master, salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
