// Package security seals the portal secret stored in portal_settings.
//
// Sealed values are base64(nonce || secretbox(plaintext)) under a 32-byte
// key supplied as 64 hex characters (SEALING_KEY).
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"planswitch/internal/types"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Sealer encrypts and decrypts stored credentials.
type Sealer struct {
	key  [keySize]byte
	rand io.Reader
}

// NewSealer parses a hex-encoded 32-byte key.
func NewSealer(hexKey types.SecretString) (*Sealer, error) {
	raw, err := hex.DecodeString(hexKey.Unmask())
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalSealing, "sealing key is not valid hex", err)
	}
	if len(raw) != keySize {
		return nil, types.NewAppError(types.ErrCodeInternalSealing,
			fmt.Sprintf("sealing key must be %d bytes, got %d", keySize, len(raw)), nil)
	}
	s := &Sealer{rand: rand.Reader}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext types.SecretString) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalSealing, "failed to generate nonce", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext.Unmask()), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Tampered or truncated input and a wrong key all fail
// the same way.
func (s *Sealer) Open(sealed string) (types.SecretString, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalSealing, "sealed value is not valid base64", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", types.NewAppError(types.ErrCodeInternalSealing, "sealed value is truncated", nil)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", types.NewAppError(types.ErrCodeInternalSealing, "sealed value could not be opened", nil)
	}
	return types.SecretString(out), nil
}
