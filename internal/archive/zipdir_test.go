package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// craftedDirectory assembles central-directory entries plus a classic EOCD
// record, with each entry's sizes sentineled out to a zip64 extra field
// declaring the given uncompressed size. No local headers exist; directory
// parsing never needs them.
func craftedDirectory(t *testing.T, declared []uint64) []byte {
	t.Helper()

	var cd bytes.Buffer
	for i, size := range declared {
		name := fmt.Sprintf("f%d", i)

		header := make([]byte, centralDirFixedSize)
		binary.LittleEndian.PutUint32(header[0:4], centralDirSignature)
		binary.LittleEndian.PutUint32(header[20:24], sentinel32)
		binary.LittleEndian.PutUint32(header[24:28], sentinel32)
		binary.LittleEndian.PutUint16(header[28:30], uint16(len(name)))
		binary.LittleEndian.PutUint16(header[30:32], 20)
		cd.Write(header)
		cd.WriteString(name)

		extra := make([]byte, 20)
		binary.LittleEndian.PutUint16(extra[0:2], zip64ExtraFieldID)
		binary.LittleEndian.PutUint16(extra[2:4], 16)
		binary.LittleEndian.PutUint64(extra[4:12], size)
		binary.LittleEndian.PutUint64(extra[12:20], 100)
		cd.Write(extra)
	}

	eocd := make([]byte, eocdFixedSize)
	binary.LittleEndian.PutUint32(eocd[0:4], eocdSignature)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16(len(declared)))
	binary.LittleEndian.PutUint16(eocd[10:12], uint16(len(declared)))
	binary.LittleEndian.PutUint32(eocd[12:16], uint32(cd.Len()))
	binary.LittleEndian.PutUint32(eocd[16:20], 0)

	return append(cd.Bytes(), eocd...)
}

func TestReadDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "dir.zip")
	writeZip(t, archivePath, map[string]string{
		"a.txt":        "12345",
		"sub/b.txt":    "1234567890",
		"sub/deeper/c": "xyz",
	})

	dir, err := ReadDirectory(archivePath)
	require.NoError(t, err)

	assert.Equal(t, 3, dir.FileCount)
	assert.Equal(t, int64(18), dir.TotalUncompressed)
	assert.Equal(t, 2, dir.MaxDepth)
	assert.Len(t, dir.Entries, 3)
}

func TestReadDirectoryWithComment(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "comment.zip")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	require.NoError(t, w.SetComment("an archive comment pushing the eocd record forward"))
	f, err := w.Create("x.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0644))

	dir, err := ReadDirectory(archivePath)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.FileCount)
	assert.Equal(t, int64(3), dir.TotalUncompressed)
}

func TestReadDirectoryEmptyArchive(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "empty.zip")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0644))

	dir, err := ReadDirectory(archivePath)
	require.NoError(t, err)
	assert.Equal(t, 0, dir.FileCount)
	assert.Equal(t, int64(0), dir.TotalUncompressed)
}

func TestReadDirectoryNotAZip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "not.zip")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip archive"), 0644))

	_, err := ReadDirectory(path)
	assert.ErrorIs(t, err, ErrNoEOCD)
}

func TestReadDirectoryTruncated(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "trunc.zip")
	writeZip(t, archivePath, map[string]string{"a.txt": "12345"})

	data, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	// Keep the EOCD record but cut into the central directory so the walk
	// runs off the end of what the EOCD claims.
	cut := append([]byte(nil), data[:20]...)
	cut = append(cut, data[len(data)-eocdFixedSize:]...)
	truncPath := filepath.Join(tmpDir, "cut.zip")
	require.NoError(t, os.WriteFile(truncPath, cut, 0644))

	_, err = ReadDirectory(truncPath)
	assert.Error(t, err)
}

func TestReadDirectoryDeclaredSizeSumSaturates(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "overflow.zip")

	// Two entries each declaring MaxInt64 would wrap the sum to -2 with a
	// plain add; the total must saturate so the ceilings stay effective.
	huge := uint64(math.MaxInt64)
	require.NoError(t, os.WriteFile(path, craftedDirectory(t, []uint64{huge, huge}), 0644))

	dir, err := ReadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.FileCount)
	assert.Equal(t, int64(math.MaxInt64), dir.TotalUncompressed)
}

func TestReadDirectoryDeclaredSizeBeyondInt64(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "negative.zip")

	// A zip64 size with the top bit set would come out negative as int64;
	// it clamps to MaxInt64 instead.
	require.NoError(t, os.WriteFile(path, craftedDirectory(t, []uint64{1 << 63}), 0644))

	dir, err := ReadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), dir.TotalUncompressed)
	assert.Equal(t, int64(math.MaxInt64), dir.Entries[0].UncompressedSize)
}

func TestDirEntryDepth(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		depth int
	}{
		{"root file", "a.txt", 0},
		{"one level", "dir/a.txt", 1},
		{"three levels", "a/b/c/d.txt", 3},
		{"directory entry", "a/b/", 1},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.depth, DirEntry{Name: tt.entry}.Depth())
		})
	}
}
