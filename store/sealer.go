package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var ErrUnseal = errors.New("store: cannot open sealed value")

// Sealer encrypts secrets at rest (site passwords, API keys). A nil Sealer
// stores values in clear, which is only meant for local development.
type Sealer struct {
	key [32]byte
}

// NewSealer derives a key from secret. An empty secret returns nil.
func NewSealer(secret string) *Sealer {
	if secret == "" {
		return nil
	}
	return &Sealer{key: sha256.Sum256([]byte(secret))}
}

func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil || plain == "" {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Values written before a key was configured are
// returned unchanged.
func (s *Sealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if s == nil {
		return "", ErrUnseal
	}
	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(box) < 24 {
		return "", ErrUnseal
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plain), nil
}
