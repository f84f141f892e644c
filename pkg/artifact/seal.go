package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// AgeSealer encrypts blobs to the X25519 recipient of a single identity.
type AgeSealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeSealer parses an AGE-SECRET-KEY-1... identity.
func NewAgeSealer(secret string) (*AgeSealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("age identity is required")
	}
	identity, err := age.ParseX25519Identity(secret)
	if err != nil {
		return nil, fmt.Errorf("parse age identity: %w", err)
	}
	return &AgeSealer{identity: identity, recipient: identity.Recipient()}, nil
}

// Recipient is the public age1... key blobs are sealed to.
func (s *AgeSealer) Recipient() string { return s.recipient.String() }

func (s *AgeSealer) Seal(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return nil, fmt.Errorf("create age encryptor: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *AgeSealer) Open(sealed []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(sealed), s.identity)
	if err != nil {
		return nil, fmt.Errorf("age decrypt: %w", err)
	}
	return io.ReadAll(r)
}
