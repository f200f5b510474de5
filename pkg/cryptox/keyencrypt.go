package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"
)

// KeyCipher seals private signing keys at rest with AES-256-GCM. The AES key
// is the SHA-256 of an operator supplied master secret, so any replica given
// the same secret can open keys another replica stored.
//
// Sealed output is [nonce][ciphertext][tag].
type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher derives a cipher from secret.
func NewKeyCipher(secret []byte) (*KeyCipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("cryptox: master key is empty")
	}

	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &KeyCipher{aead: gcm}, nil
}

// LoadKeyCipher reads the master secret from file, creating the file with
// fresh randomness if it does not exist yet.
func LoadKeyCipher(file string) (*KeyCipher, error) {
	secret, err := readOrCreateSecret(filepath.Clean(file), "master key")
	if err != nil {
		return nil, err
	}
	return NewKeyCipher(secret)
}

func (c *KeyCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *KeyCipher) Open(sealed []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(sealed) < n+c.aead.Overhead() {
		return nil, errors.New("cryptox: sealed key too short")
	}

	plaintext, err := c.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: open sealed key: %w", err)
	}
	return plaintext, nil
}
