// Package secret seals configuration values so passwords and API tokens can
// sit in config.yaml as "enc:..." strings.
package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const Prefix = "enc:"

var ErrNoKey = errors.New("secret: sealed value but no secret key configured")

type Box struct{ aead cipher.AEAD }

// New takes a 32-byte key.
func New(key []byte) (*Box, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}
	return &Box{aead: a}, nil
}

// ParseKey decodes a base64 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("secret: key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secret: key is %d bytes, want %d", len(key), chacha20poly1305.KeySize)
	}
	return key, nil
}

func NewKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	_, err := rand.Read(key)
	return key, err
}

func (b *Box) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	buf := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.RawStdEncoding.EncodeToString(buf), nil
}

// Open returns v unchanged unless it carries Prefix.
func (b *Box) Open(v string) (string, error) {
	if !Sealed(v) {
		return v, nil
	}
	buf, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(v, Prefix))
	if err != nil {
		return "", fmt.Errorf("secret: decode: %w", err)
	}
	ns := b.aead.NonceSize()
	if len(buf) < ns {
		return "", errors.New("secret: ciphertext too short")
	}
	pt, err := b.aead.Open(nil, buf[:ns], buf[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("secret: open: %w", err)
	}
	return string(pt), nil
}

func Sealed(v string) bool { return strings.HasPrefix(v, Prefix) }

// OpenAll replaces every sealed value in place. A nil box is only an error
// when something is actually sealed.
func OpenAll(b *Box, values ...*string) error {
	for _, v := range values {
		if !Sealed(*v) {
			continue
		}
		if b == nil {
			return ErrNoKey
		}
		pt, err := b.Open(*v)
		if err != nil {
			return err
		}
		*v = pt
	}
	return nil
}
