package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "id.json")
	require.NoError(t, Save(path, key))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), loaded.PublicKey())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/dev")
	p, err := ExpandPath("~/.config/solana/id.json")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/.config/solana/id.json", p)

	p, err = ExpandPath("/abs/id.json")
	require.NoError(t, err)
	assert.Equal(t, "/abs/id.json", p)
}

func TestBase58(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	back, err := DecodeBase58(EncodeBase58(key))
	require.NoError(t, err)
	assert.Equal(t, key, back)

	_, err = DecodeBase58("3mJr7AoUXx2Wqd")
	assert.True(t, errors.Is(err, ErrInvalidKey))
	_, err = DecodeBase58("0OIl")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestSaveRejectsShortKey(t *testing.T) {
	assert.ErrorIs(t, Save(filepath.Join(t.TempDir(), "k.json"), []byte{1, 2}), ErrInvalidKey)
}

func TestMismatchedPublicHalfRejected(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	spliced := append(append([]byte{}, key[:32]...), other[32:]...)
	_, err = DecodeBase58(base58.Encode(spliced))
	assert.ErrorIs(t, err, ErrInvalidKey)

	flipped := append([]byte{}, key...)
	flipped[63] ^= 1
	_, err = DecodeBase58(base58.Encode(flipped))
	assert.ErrorIs(t, err, ErrInvalidKey)

	// keygen files get the same check
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, Save(path, spliced))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
