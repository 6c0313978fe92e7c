// Package archive detects container formats by content, estimates ZIP
// payloads without decompressing, and performs bounded extraction that
// aborts on file-count, byte, depth, ratio, or time-budget violations.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/filescan/pkg/shared/config"
	"github.com/scan-io-git/filescan/pkg/shared/files"
)

// AbortReason is the closed set of reasons an extraction can be refused or
// cut short.
type AbortReason int

const (
	AbortNone AbortReason = iota
	FileCountExceeded
	BytesExceeded
	DepthExceeded
	RatioSuspicious
	TimeoutExceeded
	UnsupportedFormat
	ExtractionError
)

func (r AbortReason) String() string {
	switch r {
	case AbortNone:
		return "none"
	case FileCountExceeded:
		return "file_count_exceeded"
	case BytesExceeded:
		return "bytes_exceeded"
	case DepthExceeded:
		return "depth_exceeded"
	case RatioSuspicious:
		return "ratio_suspicious"
	case TimeoutExceeded:
		return "timeout_exceeded"
	case UnsupportedFormat:
		return "unsupported_format"
	case ExtractionError:
		return "extraction_error"
	default:
		return "unknown"
	}
}

// Stats reports how close the attempt came to each ceiling. All fields are
// populated whether the extraction succeeded or aborted.
type Stats struct {
	FileCount      int
	Bytes          int64
	Depth          int
	Elapsed        time.Duration
	CompressedSize int64
	Ratio          float64
}

// ExtractionResult is the outcome of one Extract call. When the container
// is ShellCheckOnly, ExtractedPaths holds the container itself so downstream
// signature checks still run against it.
type ExtractionResult struct {
	Format         Format
	ExtractedPaths []string
	Aborted        bool
	AbortReason    AbortReason
	Stats          Stats
}

// Extractor performs bounded archive extraction.
type Extractor struct {
	limits config.SecurityLimits
	logger hclog.Logger
}

func New(limits config.SecurityLimits, logger hclog.Logger) *Extractor {
	return &Extractor{limits: limits, logger: logger}
}

// Extract dispatches on the detected format and, for ZIP, runs the
// pre-extraction estimation and bounded extraction. Unsupported formats
// return immediately with no filesystem side effects.
func (e *Extractor) Extract(archivePath, destination string) (ExtractionResult, error) {
	started := time.Now()

	format, err := Detect(archivePath)
	if err != nil {
		return ExtractionResult{
			Format:      format,
			Aborted:     true,
			AbortReason: ExtractionError,
			Stats:       Stats{Elapsed: time.Since(started)},
		}, fmt.Errorf("detecting archive format: %w", err)
	}

	switch format.Capability() {
	case Unsupported:
		return ExtractionResult{
			Format:      format,
			Aborted:     true,
			AbortReason: UnsupportedFormat,
			Stats:       Stats{Elapsed: time.Since(started)},
		}, nil
	case ShellCheckOnly:
		e.logger.Debug("container passed through unextracted", "format", format.String())
		return ExtractionResult{
			Format:         format,
			ExtractedPaths: []string{archivePath},
			Stats:          Stats{Elapsed: time.Since(started)},
		}, nil
	}

	return e.extractZIP(archivePath, destination, started)
}

func (e *Extractor) extractZIP(archivePath, destination string, started time.Time) (ExtractionResult, error) {
	result := ExtractionResult{Format: FormatZIP}

	abort := func(reason AbortReason, err error) (ExtractionResult, error) {
		result.Aborted = true
		result.AbortReason = reason
		result.Stats.Elapsed = time.Since(started)
		return result, err
	}

	onDisk, err := os.Stat(archivePath)
	if err != nil {
		return abort(ExtractionError, fmt.Errorf("stat archive: %w", err))
	}
	result.Stats.CompressedSize = onDisk.Size()

	// Estimation from central-directory metadata only: nothing is
	// decompressed until every ceiling has been checked.
	dir, err := ReadDirectory(archivePath)
	if err != nil {
		return abort(ExtractionError, fmt.Errorf("reading zip directory: %w", err))
	}

	result.Stats.FileCount = dir.FileCount
	result.Stats.Bytes = dir.TotalUncompressed
	result.Stats.Depth = dir.MaxDepth
	if onDisk.Size() > 0 {
		result.Stats.Ratio = float64(dir.TotalUncompressed) / float64(onDisk.Size())
	}

	if result.Stats.Ratio > e.limits.MaxCompressionRatio {
		e.logger.Warn("zip compression ratio over ceiling",
			"ratio", result.Stats.Ratio, "max", e.limits.MaxCompressionRatio)
		return abort(RatioSuspicious, nil)
	}
	if dir.FileCount > e.limits.MaxExtractedFiles {
		return abort(FileCountExceeded, nil)
	}
	if dir.TotalUncompressed > e.limits.MaxExtractedBytes {
		return abort(BytesExceeded, nil)
	}
	if dir.MaxDepth > e.limits.MaxNestingDepth {
		return abort(DepthExceeded, nil)
	}

	// ErrInsecurePath is tolerated: entry names are sanitized below before
	// anything is materialized.
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return abort(ExtractionError, fmt.Errorf("zip.OpenReader: %w", err))
	}
	defer reader.Close()

	deadline := started.Add(e.limits.MaxExtractionTime)

	// Declared sizes were checked above, but local headers can lie small
	// and inflate far beyond them, so actual output is counted too and the
	// byte ceiling re-enforced across the whole extraction.
	var written int64

	for _, entry := range reader.File {
		target, ok := sanitizeEntryPath(destination, entry.Name)
		if !ok {
			// Entry collapses to nothing after dropping unsafe segments.
			continue
		}
		if _, err := files.EnsureWithinRoot(destination, target); err != nil {
			return abort(ExtractionError, fmt.Errorf("entry escapes destination: %w", err))
		}

		if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return abort(ExtractionError, fmt.Errorf("creating directory: %w", err))
			}
			continue
		}

		n, err := e.writeEntry(entry, target, e.limits.MaxExtractedBytes-written+1)
		written += n
		if written > e.limits.MaxExtractedBytes {
			result.Stats.Bytes = written
			return abort(BytesExceeded, nil)
		}
		if err != nil {
			return abort(ExtractionError, err)
		}
		result.ExtractedPaths = append(result.ExtractedPaths, target)
	}

	result.Stats.Elapsed = time.Since(started)
	if time.Now().After(deadline) {
		// Files already written stay in the result as partial output.
		return abort(TimeoutExceeded, nil)
	}

	return result, nil
}

// writeEntry materializes one entry, writing at most limit bytes, and
// returns how many bytes actually came out of the decompressor. The caller
// accounts them against the batch-wide byte ceiling.
func (e *Extractor) writeEntry(entry *zip.File, target string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("creating parent directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("opening zip entry: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("creating extracted file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, limit))
	if err != nil {
		return n, fmt.Errorf("writing extracted file: %w", err)
	}

	return n, nil
}

// sanitizeEntryPath joins an archive entry name under destination after
// dropping ".", ".." and empty segments, so a crafted name can never
// materialize outside the destination directory.
func sanitizeEntryPath(destination, name string) (string, bool) {
	segments := strings.Split(name, "/")
	clean := segments[:0]
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		clean = append(clean, seg)
	}
	if len(clean) == 0 {
		return "", false
	}
	return filepath.Join(destination, filepath.Join(clean...)), true
}
