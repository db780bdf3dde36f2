package filex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()

	dir, err := EnsureDir(filepath.Join(base, "a", "b"))
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent on an existing directory.
	again, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	p1 := UniquePath(dir, "1_2_", ".m4a")
	p2 := UniquePath(dir, "1_2_", ".m4a")

	assert.NotEqual(t, p1, p2)
	assert.True(t, strings.HasPrefix(filepath.Base(p1), "1_2_"))
	assert.True(t, strings.HasSuffix(p1, ".m4a"))
	assert.Equal(t, dir, filepath.Dir(p1))
}

func TestSaveStream(t *testing.T) {
	dir := t.TempDir()
	path := UniquePath(dir, "in_", ".bin")

	err := SaveStream(path, strings.NewReader("payload"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestSaveStream_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o660))

	err := SaveStream(path, strings.NewReader("y"))
	assert.Error(t, err)
}
