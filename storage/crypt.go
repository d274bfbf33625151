package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const sealedPrefix = "enc:v1:"

// TokenCipher encrypts bearer tokens at rest with AES-256-GCM. The key is
// derived from an operator-supplied passphrase via scrypt, with a random
// per-installation salt persisted next to the database.
type TokenCipher struct {
	aead cipher.AEAD
}

// LoadTokenCipher builds a cipher from the passphrase file named in the
// config. A nil cipher (plaintext storage) is returned when no passphrase
// file is configured.
func LoadTokenCipher(dataDir, passphraseFile string) (*TokenCipher, error) {
	if passphraseFile == "" {
		return nil, nil
	}

	passphrase, err := os.ReadFile(passphraseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase file: %w", err)
	}
	passphrase = []byte(strings.TrimSpace(string(passphrase)))
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase file %s is empty", passphraseFile)
	}

	salt, err := loadOrCreateSalt(dataDir)
	if err != nil {
		return nil, err
	}

	return NewTokenCipher(passphrase, salt)
}

func NewTokenCipher(passphrase, salt []byte) (*TokenCipher, error) {
	key, err := scrypt.Key(passphrase, salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

func loadOrCreateSalt(dataDir string) ([]byte, error) {
	saltPath := filepath.Join(dataDir, "token.salt")

	salt, err := os.ReadFile(saltPath)
	if err == nil && len(salt) == 16 {
		return salt, nil
	}

	salt = make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := os.WriteFile(saltPath, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to write salt file: %w", err)
	}
	return salt, nil
}

// Encrypt seals a token into the enc:v1: storage representation.
func (t *TokenCipher) Encrypt(plain string) (string, error) {
	nonce := make([]byte, t.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := t.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored enc:v1: value back into the plain token.
func (t *TokenCipher) Decrypt(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("malformed sealed token: %w", err)
	}

	nonceSize := t.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("sealed token too short")
	}

	plain, err := t.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed token: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether a stored token value carries the encryption
// prefix. Plaintext records from before a passphrase was configured stay
// readable.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, sealedPrefix)
}
