package archive

/* Container format detection by file signatures (magic numbers), with
   extension heuristics as the fallback. */

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Capability is a format's fixed handling tier. The tier drives all
// downstream behavior: only FullExtraction formats are ever decompressed
// in-process.
type Capability int

const (
	// Unsupported formats are reported and left untouched.
	Unsupported Capability = iota
	// ShellCheckOnly formats are identified but deliberately not extracted
	// in-process; signature checks run against the container itself.
	ShellCheckOnly
	// FullExtraction formats are extracted under resource bounds.
	FullExtraction
)

// Format is a detected container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatZIP
	FormatGzip
	FormatTar
	FormatDMG
	FormatPKG
	Format7z
)

func (f Format) String() string {
	switch f {
	case FormatZIP:
		return "zip"
	case FormatGzip:
		return "gzip"
	case FormatTar:
		return "tar"
	case FormatDMG:
		return "dmg"
	case FormatPKG:
		return "pkg"
	case Format7z:
		return "7z"
	default:
		return "unknown"
	}
}

// Capability returns the fixed handling tier for the format.
func (f Format) Capability() Capability {
	switch f {
	case FormatZIP:
		return FullExtraction
	case FormatGzip, FormatTar, FormatDMG, FormatPKG:
		return ShellCheckOnly
	default:
		return Unsupported
	}
}

// signature maps a byte pattern at a specific offset to a format.
type signature struct {
	Offset int
	Magic  []byte
	Format Format
}

const tarMagicOffset = 257

// headSignatureTable holds signatures located near the start of the file,
// longest match first where prefixes overlap.
var headSignatureTable = []signature{
	// ZIP local file header (PK\x03\x04).
	{Offset: 0, Magic: []byte{0x50, 0x4B, 0x03, 0x04}, Format: FormatZIP},
	// ZIP end-of-central-directory: an archive with no entries.
	{Offset: 0, Magic: []byte{0x50, 0x4B, 0x05, 0x06}, Format: FormatZIP},
	// ZIP spanned archive marker.
	{Offset: 0, Magic: []byte{0x50, 0x4B, 0x07, 0x08}, Format: FormatZIP},
	// 7-Zip.
	{Offset: 0, Magic: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, Format: Format7z},
	// xar, used by macOS installer packages.
	{Offset: 0, Magic: []byte("xar!"), Format: FormatPKG},
	// Gzip.
	{Offset: 0, Magic: []byte{0x1F, 0x8B}, Format: FormatGzip},
	// POSIX tar "ustar" marker at its fixed header offset.
	{Offset: tarMagicOffset, Magic: []byte("ustar"), Format: FormatTar},
}

// dmgTrailerMagic sits at the start of the fixed-size "koly" block that
// terminates an Apple disk image.
var dmgTrailerMagic = []byte("koly")

const dmgTrailerSize = 512

// maxSignatureRead covers the tar magic at offset 257 plus its marker.
const maxSignatureRead = tarMagicOffset + 8

// Detect determines the container format of the file at path by content
// first, falling back to the file extension when no magic matches. Files
// that are not containers at all come back as FormatUnknown with no error.
func Detect(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("opening file for signature detection: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return FormatUnknown, fmt.Errorf("stat file for signature detection: %w", err)
	}

	readSize := stat.Size()
	if readSize > maxSignatureRead {
		readSize = maxSignatureRead
	}

	head := make([]byte, readSize)
	if readSize > 0 {
		n, err := file.ReadAt(head, 0)
		if err != nil && n < int(readSize) {
			return FormatUnknown, fmt.Errorf("reading file for signature detection: %w", err)
		}
		head = head[:n]
	}

	for _, sig := range headSignatureTable {
		end := sig.Offset + len(sig.Magic)
		if end > len(head) {
			continue
		}
		if bytes.Equal(head[sig.Offset:end], sig.Magic) {
			return sig.Format, nil
		}
	}

	// DMG keeps its magic in a trailer block at the end of the image.
	if stat.Size() >= dmgTrailerSize {
		trailer := make([]byte, len(dmgTrailerMagic))
		if _, err := file.ReadAt(trailer, stat.Size()-dmgTrailerSize); err == nil {
			if bytes.Equal(trailer, dmgTrailerMagic) {
				return FormatDMG, nil
			}
		}
	}

	return detectByExtension(path), nil
}

func detectByExtension(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return FormatZIP
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatGzip
	case strings.HasSuffix(name, ".gz"):
		return FormatGzip
	case strings.HasSuffix(name, ".tar"):
		return FormatTar
	case strings.HasSuffix(name, ".dmg"):
		return FormatDMG
	case strings.HasSuffix(name, ".pkg"):
		return FormatPKG
	case strings.HasSuffix(name, ".7z"):
		return Format7z
	default:
		return FormatUnknown
	}
}
