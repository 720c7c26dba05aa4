package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// APIKeyStore validates API keys and optionally provides a health ping.
type APIKeyStore interface {
	Validate(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// StaticKeyStore accepts a fixed set of keys from configuration. Keys are
// held as SHA-256 digests and compared in constant time.
type StaticKeyStore struct {
	digests [][sha256.Size]byte
}

func NewStaticKeyStore(keys []string) *StaticKeyStore {
	s := &StaticKeyStore{}
	for _, k := range keys {
		if k != "" {
			s.digests = append(s.digests, sha256.Sum256([]byte(k)))
		}
	}
	return s
}

// Enabled reports whether any key is configured.
func (s *StaticKeyStore) Enabled() bool { return s != nil && len(s.digests) > 0 }

func (s *StaticKeyStore) Validate(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("missing key")
	}
	d := sha256.Sum256([]byte(key))
	ok := 0
	for i := range s.digests {
		ok |= subtle.ConstantTimeCompare(d[:], s.digests[i][:])
	}
	return ok == 1, nil
}

func (s *StaticKeyStore) Ping(context.Context) error { return nil }

// HashPrefix returns the first 8 hex chars of SHA-256(key) for logging.
func HashPrefix(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}
