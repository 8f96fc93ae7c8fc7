package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "token.json")
	fs := NewFileStore(path)

	assert.Empty(t, fs.Token())

	require.NoError(t, fs.Save("abc", time.Now().Add(time.Hour)))
	assert.Equal(t, "abc", fs.Token())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, fs.Clear())
	assert.Empty(t, fs.Token())
	require.NoError(t, fs.Clear())
}

func TestFileStoreExpiredTokenIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	fs := NewFileStore(path)

	now := time.Now()
	fs.now = func() time.Time { return now }
	require.NoError(t, fs.Save("old", now.Add(-time.Minute)))

	assert.Empty(t, fs.Token())
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ms := NewMemoryStore()
	now := time.Now()
	ms.now = func() time.Time { return now }

	require.NoError(t, ms.Save("t1", time.Time{}))
	assert.Equal(t, "t1", ms.Token())

	require.NoError(t, ms.Save("t2", now.Add(-time.Second)))
	assert.Empty(t, ms.Token())
}

func TestChainPrefersDurable(t *testing.T) {
	durable := NewMemoryStore()
	session := NewMemoryStore()
	chain := NewChain(durable, session, nil)

	require.NoError(t, session.Save("session-token", time.Time{}))
	assert.Equal(t, "session-token", chain.Token())

	require.NoError(t, durable.Save("durable-token", time.Time{}))
	assert.Equal(t, "durable-token", chain.Token())
	assert.Equal(t, "session-token", chain.SessionToken())

	require.NoError(t, chain.Clear())
	assert.Empty(t, chain.Token())
}

func TestChainSaveWithoutDurable(t *testing.T) {
	chain := NewChain(nil, NewMemoryStore(), nil)

	require.NoError(t, chain.Save("tok", time.Time{}))
	assert.Equal(t, "tok", chain.Token())
}

func TestChainSaveSurvivesDurableFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// родительский "каталог" является файлом, запись невозможна
	durable := NewFileStore(filepath.Join(blocker, "token.json"))
	chain := NewChain(durable, NewMemoryStore(), nil)

	require.NoError(t, chain.Save("tok", time.Time{}))
	assert.Equal(t, "tok", chain.Token())
}
