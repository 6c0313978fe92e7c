package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tmpDir := t.TempDir()

	file := filepath.Join(tmpDir, "regular.txt")
	require.NoError(t, os.WriteFile(file, []byte("data"), 0644))

	assert.NoError(t, ValidatePath(file))
	assert.Error(t, ValidatePath(tmpDir), "directories are not scannable files")
	assert.Error(t, ValidatePath(filepath.Join(tmpDir, "missing")))
}

func TestCreateFolderIfNotExists(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b", "c")

	require.NoError(t, CreateFolderIfNotExists(nested))
	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Existing folder is fine.
	assert.NoError(t, CreateFolderIfNotExists(nested))
}

func TestEnsureWithinRoot(t *testing.T) {
	tmpDir := t.TempDir()

	inside, err := EnsureWithinRoot(tmpDir, filepath.Join(tmpDir, "sub", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "sub", "file.txt"), inside)

	// Root itself is within root.
	_, err = EnsureWithinRoot(tmpDir, tmpDir)
	assert.NoError(t, err)

	_, err = EnsureWithinRoot(tmpDir, filepath.Join(tmpDir, "..", "escape.txt"))
	assert.Error(t, err)

	// A sibling sharing the root's name prefix is not inside it.
	_, err = EnsureWithinRoot(tmpDir, tmpDir+"2")
	assert.Error(t, err)

	// Empty root skips the check.
	cleaned, err := EnsureWithinRoot("", "/anywhere/./file")
	require.NoError(t, err)
	assert.Equal(t, "/anywhere/file", cleaned)
}
