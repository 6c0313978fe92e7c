package archive

/* Reader for the ZIP central directory. It estimates the uncompressed
   payload of a container without touching a single compressed byte, which
   is what makes the ratio check safe to run before any decompression. */

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

const (
	eocdSignature       = 0x06054b50
	eocd64Signature     = 0x06064b50
	eocd64LocSignature  = 0x07064b50
	centralDirSignature = 0x02014b50
	zip64ExtraFieldID   = 0x0001
	sentinel16          = 0xFFFF
	sentinel32          = 0xFFFFFFFF
	eocdFixedSize       = 22
	eocd64LocFixedSize  = 20
	eocd64FixedSize     = 56
	centralDirFixedSize = 46
	maxCommentLength    = 0xFFFF
	maxEOCDSearchWindow = eocdFixedSize + maxCommentLength
)

// Directory parsing errors. Every malformed or truncated structure fails
// closed with one of these rather than reading out of bounds.
var (
	ErrNoEOCD          = errors.New("zip: end of central directory record not found")
	ErrTruncatedDir    = errors.New("zip: truncated central directory")
	ErrBadDirSignature = errors.New("zip: bad central directory entry signature")
	ErrTruncatedZip64  = errors.New("zip: truncated zip64 structure")
	ErrDirOutOfBounds  = errors.New("zip: central directory lies outside the file")
)

// DirEntry is one central-directory entry, carrying only the metadata the
// limiter needs.
type DirEntry struct {
	Name             string
	CompressedSize   int64
	UncompressedSize int64
	IsDir            bool
}

// Depth is the number of directory levels above the entry name.
func (e DirEntry) Depth() int {
	name := strings.Trim(e.Name, "/")
	if name == "" {
		return 0
	}
	return strings.Count(name, "/")
}

// Directory is the parsed central directory of a ZIP container.
type Directory struct {
	Entries           []DirEntry
	FileCount         int
	TotalUncompressed int64
	MaxDepth          int
}

// ReadDirectory locates the end-of-central-directory record by scanning
// backward from the file end within the maximum comment-length window,
// resolves the 64-bit variant when any EOCD field is sentineled, and walks
// the fixed-size central-directory headers summing uncompressed sizes.
// No payload bytes are ever read.
func ReadDirectory(path string) (*Directory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zip: open: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("zip: stat: %w", err)
	}
	fileSize := stat.Size()

	eocdOffset, eocd, err := findEOCD(file, fileSize)
	if err != nil {
		return nil, err
	}

	entryCount := int64(binary.LittleEndian.Uint16(eocd[10:12]))
	dirSize := int64(binary.LittleEndian.Uint32(eocd[12:16]))
	dirOffset := int64(binary.LittleEndian.Uint32(eocd[16:20]))

	if entryCount == sentinel16 || dirSize == sentinel32 || dirOffset == sentinel32 {
		entryCount, dirSize, dirOffset, err = readEOCD64(file, eocdOffset)
		if err != nil {
			return nil, err
		}
	}

	if dirOffset < 0 || dirSize < 0 || dirOffset+dirSize > fileSize {
		return nil, ErrDirOutOfBounds
	}

	dirData := make([]byte, dirSize)
	if _, err := file.ReadAt(dirData, dirOffset); err != nil {
		return nil, fmt.Errorf("zip: reading central directory: %w", err)
	}

	return walkDirectory(dirData, entryCount)
}

// findEOCD scans backward from the end of the file for the EOCD signature,
// bounded by the largest possible comment. Returns the record offset and
// its fixed part.
func findEOCD(file *os.File, fileSize int64) (int64, []byte, error) {
	if fileSize < eocdFixedSize {
		return 0, nil, ErrNoEOCD
	}

	window := int64(maxEOCDSearchWindow)
	if window > fileSize {
		window = fileSize
	}

	buf := make([]byte, window)
	if _, err := file.ReadAt(buf, fileSize-window); err != nil {
		return 0, nil, fmt.Errorf("zip: reading eocd window: %w", err)
	}

	for i := len(buf) - eocdFixedSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != eocdSignature {
			continue
		}
		// The comment length must be consistent with the record position,
		// otherwise this is payload noise that happens to match.
		commentLen := int(binary.LittleEndian.Uint16(buf[i+20 : i+22]))
		if i+eocdFixedSize+commentLen <= len(buf) {
			return fileSize - window + int64(i), buf[i : i+eocdFixedSize], nil
		}
	}

	return 0, nil, ErrNoEOCD
}

// readEOCD64 locates the zip64 EOCD locator immediately before the classic
// EOCD record and follows it to the zip64 EOCD record.
func readEOCD64(file *os.File, eocdOffset int64) (int64, int64, int64, error) {
	locOffset := eocdOffset - eocd64LocFixedSize
	if locOffset < 0 {
		return 0, 0, 0, ErrTruncatedZip64
	}

	loc := make([]byte, eocd64LocFixedSize)
	if _, err := file.ReadAt(loc, locOffset); err != nil {
		return 0, 0, 0, fmt.Errorf("zip: reading zip64 locator: %w", err)
	}
	if binary.LittleEndian.Uint32(loc[0:4]) != eocd64LocSignature {
		return 0, 0, 0, ErrTruncatedZip64
	}

	recOffset := int64(binary.LittleEndian.Uint64(loc[8:16]))
	rec := make([]byte, eocd64FixedSize)
	if _, err := file.ReadAt(rec, recOffset); err != nil {
		return 0, 0, 0, fmt.Errorf("zip: reading zip64 eocd: %w", err)
	}
	if binary.LittleEndian.Uint32(rec[0:4]) != eocd64Signature {
		return 0, 0, 0, ErrTruncatedZip64
	}

	entryCount := int64(binary.LittleEndian.Uint64(rec[32:40]))
	dirSize := int64(binary.LittleEndian.Uint64(rec[40:48]))
	dirOffset := int64(binary.LittleEndian.Uint64(rec[48:56]))

	return entryCount, dirSize, dirOffset, nil
}

// walkDirectory parses the fixed-size central-directory entry headers out
// of dirData, resolving zip64 size overrides from each entry's extra field
// when the 32-bit fields are sentineled.
func walkDirectory(dirData []byte, entryCount int64) (*Directory, error) {
	dir := &Directory{}
	offset := 0

	for n := int64(0); n < entryCount; n++ {
		if offset+centralDirFixedSize > len(dirData) {
			return nil, ErrTruncatedDir
		}
		header := dirData[offset : offset+centralDirFixedSize]
		if binary.LittleEndian.Uint32(header[0:4]) != centralDirSignature {
			return nil, ErrBadDirSignature
		}

		compressed := int64(binary.LittleEndian.Uint32(header[20:24]))
		uncompressed := int64(binary.LittleEndian.Uint32(header[24:28]))
		nameLen := int(binary.LittleEndian.Uint16(header[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(header[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(header[32:34]))

		end := offset + centralDirFixedSize + nameLen + extraLen + commentLen
		if end > len(dirData) {
			return nil, ErrTruncatedDir
		}

		name := string(dirData[offset+centralDirFixedSize : offset+centralDirFixedSize+nameLen])
		extra := dirData[offset+centralDirFixedSize+nameLen : offset+centralDirFixedSize+nameLen+extraLen]

		if uncompressed == sentinel32 || compressed == sentinel32 {
			var err error
			uncompressed, compressed, err = resolveZip64Sizes(extra, uncompressed, compressed)
			if err != nil {
				return nil, err
			}
		}

		entry := DirEntry{
			Name:             name,
			CompressedSize:   compressed,
			UncompressedSize: uncompressed,
			IsDir:            strings.HasSuffix(name, "/"),
		}
		dir.Entries = append(dir.Entries, entry)

		if !entry.IsDir {
			dir.FileCount++
			dir.TotalUncompressed = addDeclaredSizes(dir.TotalUncompressed, entry.UncompressedSize)
		}
		if depth := entry.Depth(); depth > dir.MaxDepth {
			dir.MaxDepth = depth
		}

		offset = end
	}

	return dir, nil
}

// resolveZip64Sizes walks the extensible metadata block for the zip64 field
// (header id 0x0001). Its payload lists the 64-bit values for exactly the
// header fields that carry the 32-bit sentinel, in header order:
// uncompressed size first, then compressed size.
func resolveZip64Sizes(extra []byte, uncompressed, compressed int64) (int64, int64, error) {
	for len(extra) >= 4 {
		fieldID := binary.LittleEndian.Uint16(extra[0:2])
		fieldLen := int(binary.LittleEndian.Uint16(extra[2:4]))
		if 4+fieldLen > len(extra) {
			return 0, 0, ErrTruncatedZip64
		}
		body := extra[4 : 4+fieldLen]

		if fieldID == zip64ExtraFieldID {
			if uncompressed == sentinel32 {
				if len(body) < 8 {
					return 0, 0, ErrTruncatedZip64
				}
				uncompressed = clampDeclaredSize(binary.LittleEndian.Uint64(body[0:8]))
				body = body[8:]
			}
			if compressed == sentinel32 {
				if len(body) < 8 {
					return 0, 0, ErrTruncatedZip64
				}
				compressed = clampDeclaredSize(binary.LittleEndian.Uint64(body[0:8]))
			}
			return uncompressed, compressed, nil
		}

		extra = extra[4+fieldLen:]
	}

	return 0, 0, ErrTruncatedZip64
}

// clampDeclaredSize converts a zip64 size field to int64 without wrapping
// negative. A declared size beyond int64 range cannot be a real payload;
// clamping it to MaxInt64 keeps the byte and ratio ceilings failing closed.
func clampDeclaredSize(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// addDeclaredSizes sums declared sizes saturating at MaxInt64. A crafted
// directory whose declared sizes overflow the sum must trip the ceilings,
// not wrap the total negative and slip under them.
func addDeclaredSizes(total, size int64) int64 {
	if size < 0 || total > math.MaxInt64-size {
		return math.MaxInt64
	}
	return total + size
}
