package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFlagConsumeClears(t *testing.T) {
	flag := NewFileFlag(filepath.Join(t.TempDir(), "state", "intent.yaml"))

	value, err := flag.Consume()
	require.NoError(t, err)
	assert.False(t, value, "missing file reads as false")

	require.NoError(t, flag.Set(true))
	peeked, err := flag.Peek()
	require.NoError(t, err)
	assert.True(t, peeked)

	value, err = flag.Consume()
	require.NoError(t, err)
	assert.True(t, value)

	value, err = flag.Consume()
	require.NoError(t, err)
	assert.False(t, value)
}

func TestFileFlagSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intent.yaml")
	require.NoError(t, NewFileFlag(path).Set(true))

	value, err := NewFileFlag(path).Consume()
	require.NoError(t, err)
	assert.True(t, value)
}

func TestFileFlagCorruptIsClearedAnyway(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("migrate_guest_on_login: [unterminated"), 0o600))

	flag := NewFileFlag(path)
	_, err := flag.Consume()
	require.Error(t, err)

	value, err := flag.Consume()
	require.NoError(t, err)
	assert.False(t, value)
}

func TestMemoryFlag(t *testing.T) {
	var flag MemoryFlag
	require.NoError(t, flag.Set(true))
	value, _ := flag.Consume()
	assert.True(t, value)
	value, _ = flag.Consume()
	assert.False(t, value)
}
