package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBytes(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestDetectByMagic(t *testing.T) {
	tmpDir := t.TempDir()

	tarHeader := make([]byte, 512)
	copy(tarHeader[tarMagicOffset:], "ustar")

	dmgImage := make([]byte, 1024)
	copy(dmgImage[len(dmgImage)-dmgTrailerSize:], "koly")

	tests := []struct {
		name   string
		file   string
		data   []byte
		format Format
	}{
		{"zip local header", "f.bin", []byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00}, FormatZIP},
		{"zip empty archive", "g.bin", []byte{0x50, 0x4B, 0x05, 0x06, 0x00, 0x00}, FormatZIP},
		{"gzip", "h.bin", []byte{0x1F, 0x8B, 0x08, 0x00}, FormatGzip},
		{"7z", "i.bin", []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C, 0x00}, Format7z},
		{"xar pkg", "j.bin", []byte("xar!0000"), FormatPKG},
		{"tar ustar", "k.bin", tarHeader, FormatTar},
		{"dmg koly trailer", "l.bin", dmgImage, FormatDMG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeBytes(t, tmpDir, tt.file, tt.data)
			format, err := Detect(path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestDetectExtensionFallback(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		file   string
		format Format
	}{
		{"noise.zip", FormatZIP},
		{"noise.tar", FormatTar},
		{"noise.tar.gz", FormatGzip},
		{"noise.tgz", FormatGzip},
		{"noise.dmg", FormatDMG},
		{"noise.pkg", FormatPKG},
		{"noise.7z", Format7z},
		{"noise.txt", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			// Content carries no recognizable magic.
			path := writeBytes(t, tmpDir, tt.file, []byte("plain text content"))
			format, err := Detect(path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestDetectMagicBeatsExtension(t *testing.T) {
	tmpDir := t.TempDir()

	// A zip renamed to .txt is still detected as a zip.
	path := writeBytes(t, tmpDir, "renamed.txt", []byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00})
	format, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, FormatZIP, format)
}

func TestCapabilityTiers(t *testing.T) {
	assert.Equal(t, FullExtraction, FormatZIP.Capability())
	assert.Equal(t, ShellCheckOnly, FormatTar.Capability())
	assert.Equal(t, ShellCheckOnly, FormatGzip.Capability())
	assert.Equal(t, ShellCheckOnly, FormatDMG.Capability())
	assert.Equal(t, ShellCheckOnly, FormatPKG.Capability())
	assert.Equal(t, Unsupported, Format7z.Capability())
	assert.Equal(t, Unsupported, FormatUnknown.Capability())
}
