package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIdentityGeneratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.json")

	id, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.NotEmpty(t, id.ClientID)

	// Same file, same identity.
	again, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, id.ClientID, again.ClientID)
}

func TestLoadOrCreateIdentityReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	id, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.NotEmpty(t, id.ClientID)
}

func TestIdentityWipeMintsNewIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	first, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	second, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.NotEqual(t, first.ClientID, second.ClientID)
}

func TestIdentitySaveKeepsDisplayName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	id, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	id.DisplayName = "Ada"
	require.NoError(t, id.Save(path))

	loaded, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded.DisplayName)
}
