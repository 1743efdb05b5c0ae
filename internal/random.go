package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const opaqueTokenSize = 32

var errOpaqueTokenSize = errors.New("invalid opaque token size")

// NewOpaqueToken returns 32 bytes of crypto/rand entropy, base64url encoded
// without padding.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// CheckOpaqueToken reports whether token has the shape produced by
// NewOpaqueToken.
func CheckOpaqueToken(token string) error {
	if base64.RawURLEncoding.DecodedLen(len(token)) != opaqueTokenSize {
		return errOpaqueTokenSize
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return err
	}
	if len(raw) != opaqueTokenSize {
		return errOpaqueTokenSize
	}
	return nil
}

// HashToken is the storage form of an opaque token: hex sha256.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewSessionID returns a lexically sortable ULID for t.
func NewSessionID(t time.Time) (string, error) {
	idMu.Lock()
	defer idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), idEntropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
