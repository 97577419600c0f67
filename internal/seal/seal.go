// Package seal implements the sealed-envelope primitive used by call
// signaling. Envelopes are encrypted to the recipient's ephemeral public key;
// the relay routes them by temp-id and has no key material to open them.
package seal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

var (
	ErrInvalidPublicKey = errors.New("public key must be a 32-byte base64 value")
	ErrDecryptionFailed = errors.New("envelope could not be opened")
)

// KeyPair is a fresh Curve25519 key pair, generated once per connection.
type KeyPair struct {
	public  *[32]byte
	private *[32]byte
}

// GenerateKeyPair produces a fresh key pair for one connection's lifetime.
func GenerateKeyPair() (*KeyPair, error) {
	public, private, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{public: public, private: private}, nil
}

// PublicKey returns the base64 form announced via call:register.
func (k *KeyPair) PublicKey() string {
	return base64.StdEncoding.EncodeToString(k.public[:])
}

// ParsePublicKey decodes and validates a base64 public key.
func ParsePublicKey(s string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidPublicKey
	}

	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// Seal encrypts plaintext to the recipient's public key using an ephemeral
// sender key, so the envelope carries no sender identity.
func Seal(recipientPublicKey string, plaintext []byte) (string, error) {
	key, err := ParsePublicKey(recipientPublicKey)
	if err != nil {
		return "", err
	}

	sealed, err := box.SealAnonymous(nil, plaintext, key, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("seal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts an envelope sealed to this key pair.
func (k *KeyPair) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, ok := box.OpenAnonymous(nil, raw, k.public, k.private)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
