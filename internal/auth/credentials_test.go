package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvKey, "")
	return home
}

func TestGetKey_NoneConfigured(t *testing.T) {
	isolate(t)

	ki, err := GetKey()
	require.NoError(t, err)
	assert.Nil(t, ki)
}

func TestSetGetDelete(t *testing.T) {
	home := isolate(t)

	require.NoError(t, SetKey("  anon-key-123456  "))

	info, err := os.Stat(filepath.Join(home, credDirName, credFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ki, err := GetKey()
	require.NoError(t, err)
	require.NotNil(t, ki)
	assert.Equal(t, "anon-key-123456", ki.Key)
	assert.Equal(t, "file", ki.Source)
	assert.False(t, ki.CreatedAt.IsZero())

	require.NoError(t, DeleteKey())
	require.NoError(t, DeleteKey())

	ki, err = GetKey()
	require.NoError(t, err)
	assert.Nil(t, ki)
}

func TestGetKey_EnvWins(t *testing.T) {
	isolate(t)
	require.NoError(t, SetKey("from-file"))
	t.Setenv(EnvKey, " from-env ")

	ki, err := GetKey()
	require.NoError(t, err)
	require.NotNil(t, ki)
	assert.Equal(t, "from-env", ki.Key)
	assert.Equal(t, "env", ki.Source)
}

func TestSetKey_Empty(t *testing.T) {
	isolate(t)
	assert.Error(t, SetKey("   "))
}

func TestGetKey_CorruptFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, credDirName)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, credFileName), []byte("{"), 0o600))

	_, err := GetKey()
	assert.ErrorContains(t, err, "parse credentials")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "abcd…wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
