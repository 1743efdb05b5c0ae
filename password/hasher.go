package password

import (
	"errors"
	"fmt"
)

// Secret length bounds, in bytes.
const (
	MinSecretBytes = 6
	MaxSecretBytes = 1024
)

var (
	ErrSecretTooShort       = fmt.Errorf("password: secret must be at least %d bytes", MinSecretBytes)
	ErrSecretTooLong        = fmt.Errorf("password: secret must be at most %d bytes", MaxSecretBytes)
	ErrMalformedHash        = errors.New("password: malformed hash")
	ErrUnsupportedAlgorithm = errors.New("password: unsupported hash algorithm")
)

// Scheme is one hash algorithm.
type Scheme interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
	Recognizes(encoded string) bool
}

// Hasher hashes new secrets with a primary scheme and verifies stored hashes
// with whichever configured scheme recognizes them. Hashes from a legacy
// scheme always report NeedsUpgrade.
type Hasher struct {
	primary Scheme
	legacy  []Scheme
}

// NewHasher returns a [Hasher]. primary must be non-nil.
func NewHasher(primary Scheme, legacy ...Scheme) (*Hasher, error) {
	if primary == nil {
		return nil, errors.New("password: primary scheme required")
	}
	return &Hasher{primary: primary, legacy: legacy}, nil
}

// NewDefaultHasher returns argon2id with default parameters as primary and
// bcrypt as the legacy verifier.
func NewDefaultHasher() (*Hasher, error) {
	a, err := NewArgon2(DefaultArgon2Config())
	if err != nil {
		return nil, err
	}
	b, err := NewBcrypt(0)
	if err != nil {
		return nil, err
	}
	return NewHasher(a, b)
}

func (h *Hasher) Hash(secret string) (string, error) {
	return h.primary.Hash(secret)
}

// Verify checks secret against encoded in constant time with respect to the
// secret. Unknown formats return [ErrUnsupportedAlgorithm].
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	s, err := h.schemeFor(encoded)
	if err != nil {
		return false, err
	}
	return s.Verify(secret, encoded)
}

func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	s, err := h.schemeFor(encoded)
	if err != nil {
		return false, err
	}
	if s != h.primary {
		return true, nil
	}
	return s.NeedsUpgrade(encoded)
}

func (h *Hasher) schemeFor(encoded string) (Scheme, error) {
	if h.primary.Recognizes(encoded) {
		return h.primary, nil
	}
	for _, s := range h.legacy {
		if s.Recognizes(encoded) {
			return s, nil
		}
	}
	return nil, ErrUnsupportedAlgorithm
}

func checkLength(secret string) error {
	switch {
	case len(secret) < MinSecretBytes:
		return ErrSecretTooShort
	case len(secret) > MaxSecretBytes:
		return ErrSecretTooLong
	}
	return nil
}
