package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestKeyCipherRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := cryptox.NewKeyCipher([]byte("master"))
	require.NoError(t, err)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	sealed, err := c.Seal(pemKey)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "PRIVATE KEY")

	again, err := c.Seal(pemKey)
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "each seal uses a fresh nonce")

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, pemKey, opened)
}

func TestKeyCipherRejects(t *testing.T) {
	t.Parallel()

	_, err := cryptox.NewKeyCipher(nil)
	require.Error(t, err)

	c, err := cryptox.NewKeyCipher([]byte("master"))
	require.NoError(t, err)
	other, err := cryptox.NewKeyCipher([]byte("other"))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("key material"))
	require.NoError(t, err)

	t.Run("wrong master key", func(t *testing.T) {
		_, err := other.Open(sealed)
		require.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xff
		_, err := c.Open(bad)
		require.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := c.Open(sealed[:8])
		require.Error(t, err)
	})
}

func TestLoadKeyCipherCreatesAndReusesFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "keys", "master.key")

	first, err := cryptox.LoadKeyCipher(file)
	require.NoError(t, err)

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	sealed, err := first.Seal([]byte("key material"))
	require.NoError(t, err)

	second, err := cryptox.LoadKeyCipher(file)
	require.NoError(t, err)
	opened, err := second.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("key material"), opened)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = cryptox.LoadKeyCipher(empty)
	require.Error(t, err)
}
