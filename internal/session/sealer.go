package session

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealedPrefix = "v1:"
	plainPrefix  = "p0:"
)

// Sealer encrypts access tokens at rest with XChaCha20-Poly1305. A nil
// *Sealer stores values in plaintext behind plainPrefix so they are never
// mistaken for sealed ones.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a hex encoded 32 byte key. An empty key
// returns a nil Sealer.
func NewSealer(hexKey string) (*Sealer, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode session key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init session cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil {
		return plainPrefix + plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without either prefix predate it and are read as
// plaintext when no key is configured.
func (s *Sealer) Open(value string) (string, error) {
	if plain, ok := strings.CutPrefix(value, plainPrefix); ok {
		if s != nil {
			return "", errors.New("stored token is not sealed")
		}
		return plain, nil
	}
	if !strings.HasPrefix(value, sealedPrefix) {
		if s == nil {
			return value, nil
		}
		return "", errors.New("stored token is not sealed")
	}
	if s == nil {
		return "", errors.New("stored token is sealed but no session key is configured")
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("sealed token too short")
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed token: %w", err)
	}
	return string(plain), nil
}
