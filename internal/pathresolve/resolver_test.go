package pathresolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxDepth = 8

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func kindOf(t *testing.T, err error) FailureKind {
	t.Helper()
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr), "expected a ResolutionError, got %v", err)
	return resErr.Kind
}

func TestResolveRegularFile(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "plain.txt")
	mustWrite(t, target, "data")

	resolved, err := Resolve(target, tmpDir, testMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved.ChainDepth)

	// Idempotence: resolving the canonical path again yields the same path.
	again, err := Resolve(resolved.CanonicalPath, tmpDir, testMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, resolved.CanonicalPath, again.CanonicalPath)
}

func TestResolveDotSegments(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "plain.txt")
	mustWrite(t, target, "data")

	messy := filepath.Join(tmpDir, "sub", "..", ".", "plain.txt")
	resolved, err := Resolve(messy, tmpDir, testMaxDepth)
	require.NoError(t, err)

	direct, err := Resolve(target, tmpDir, testMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, direct.CanonicalPath, resolved.CanonicalPath)
}

func TestResolveSymlinkChainDepth(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target.txt")
	mustWrite(t, target, "data")

	// link1 -> target, link2 -> link1, ... linkN -> linkN-1.
	prev := target
	for i := 1; i <= testMaxDepth+1; i++ {
		link := filepath.Join(tmpDir, fmt.Sprintf("link%02d", i))
		require.NoError(t, os.Symlink(prev, link))
		prev = link
	}

	// A chain of exactly testMaxDepth links resolves.
	atLimit := filepath.Join(tmpDir, fmt.Sprintf("link%02d", testMaxDepth))
	resolved, err := Resolve(atLimit, tmpDir, testMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, testMaxDepth, resolved.ChainDepth)

	// One more link fails with DepthExceeded, not a generic error.
	overLimit := filepath.Join(tmpDir, fmt.Sprintf("link%02d", testMaxDepth+1))
	_, err = Resolve(overLimit, tmpDir, testMaxDepth)
	assert.Equal(t, DepthExceeded, kindOf(t, err))
}

func TestResolveCircularLink(t *testing.T) {
	tmpDir := t.TempDir()
	linkA := filepath.Join(tmpDir, "a")
	linkB := filepath.Join(tmpDir, "b")
	require.NoError(t, os.Symlink(linkB, linkA))
	require.NoError(t, os.Symlink(linkA, linkB))

	_, err := Resolve(linkA, tmpDir, testMaxDepth)
	assert.Equal(t, CircularLink, kindOf(t, err))
}

func TestResolveSelfLink(t *testing.T) {
	tmpDir := t.TempDir()
	link := filepath.Join(tmpDir, "self")
	require.NoError(t, os.Symlink(link, link))

	_, err := Resolve(link, tmpDir, testMaxDepth)
	assert.Equal(t, CircularLink, kindOf(t, err))
}

func TestResolveMissingFile(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Resolve(filepath.Join(tmpDir, "missing"), tmpDir, testMaxDepth)
	assert.Equal(t, Inaccessible, kindOf(t, err))
}

func TestResolveOutsideScanRoot(t *testing.T) {
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "root")
	require.NoError(t, os.MkdirAll(root, 0755))
	outside := filepath.Join(tmpDir, "outside.txt")
	mustWrite(t, outside, "data")

	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	_, err := Resolve(link, root, testMaxDepth)
	assert.Equal(t, OutsideScanRoot, kindOf(t, err))
}

func TestResolveSiblingPrefixNotInsideRoot(t *testing.T) {
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "root")
	sibling := filepath.Join(tmpDir, "root2")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(sibling, 0755))
	target := filepath.Join(sibling, "file.txt")
	mustWrite(t, target, "data")

	// "/root2" shares a string prefix with "/root" but is not inside it.
	_, err := Resolve(target, root, testMaxDepth)
	assert.Equal(t, OutsideScanRoot, kindOf(t, err))
}

func TestResolveEmptyScanRootSkipsBoundary(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "file.txt")
	mustWrite(t, target, "data")

	resolved, err := Resolve(target, "", testMaxDepth)
	require.NoError(t, err)
	assert.NotEmpty(t, resolved.CanonicalPath)
}
