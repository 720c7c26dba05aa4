// Package keys loads, stores and generates ed25519 identities in the formats
// the Solana CLI uses.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	sol "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrInvalidKey = errors.New("invalid private key")

// Generate returns a fresh identity.
func Generate() (sol.PrivateKey, error) {
	return sol.NewRandomPrivateKey()
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads a keygen file: a JSON array of the 64 secret key bytes.
func Load(path string) (sol.PrivateKey, error) {
	p, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	key, err := sol.PrivateKeyFromSolanaKeygenFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, "load keypair %s", p)
	}
	if err := checkKeypair(key); err != nil {
		return nil, errors.Wrapf(err, "load keypair %s", p)
	}
	return key, nil
}

// Save writes key in keygen format with owner-only permissions.
func Save(path string, key sol.PrivateKey) error {
	if len(key) != 64 {
		return ErrInvalidKey
	}
	p, err := ExpandPath(path)
	if err != nil {
		return err
	}
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(p))
	}
	return errors.Wrapf(os.WriteFile(p, data, 0o600), "write keypair %s", p)
}

func EncodeBase58(key sol.PrivateKey) string { return base58.Encode(key) }

// DecodeBase58 parses a base58 secret key as printed by wallets.
func DecodeBase58(s string) (sol.PrivateKey, error) {
	b, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	if err := checkKeypair(b); err != nil {
		return nil, err
	}
	return sol.PrivateKey(b), nil
}

// checkKeypair requires 64 bytes whose second half is the public key derived
// from the first.
func checkKeypair(b []byte) error {
	if len(b) != ed25519.PrivateKeySize {
		return errors.Wrapf(ErrInvalidKey, "got %d bytes, want %d", len(b), ed25519.PrivateKeySize)
	}
	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize]).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, b[ed25519.SeedSize:]) {
		return errors.Wrap(ErrInvalidKey, "public key does not match secret")
	}
	return nil
}
