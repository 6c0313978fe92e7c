package config

import (
	"fmt"
	"time"
)

// SecurityLimits enumerates every resource ceiling enforced by the scanning
// core. All fields are hard limits: exceeding any of them rejects the unit
// of work (batch, archive, or pattern) rather than truncating it.
type SecurityLimits struct {
	// Batch pre-check ceilings.
	MaxFiles           int           `yaml:"max_files"`
	MaxTotalBytes      int64         `yaml:"max_total_bytes"`
	MaxConcurrentScans int           `yaml:"max_concurrent_scans"`
	ScanTimeout        time.Duration `yaml:"scan_timeout"`

	// Path resolution.
	MaxSymlinkDepth int `yaml:"max_symlink_depth"`

	// Archive extraction ceilings.
	MaxExtractedFiles   int           `yaml:"max_extracted_files"`
	MaxExtractedBytes   int64         `yaml:"max_extracted_bytes"`
	MaxNestingDepth     int           `yaml:"max_nesting_depth"`
	MaxCompressionRatio float64       `yaml:"max_compression_ratio"`
	MaxExtractionTime   time.Duration `yaml:"max_extraction_time"`

	// Regex pattern ceilings.
	MaxPatternLength int           `yaml:"max_pattern_length"`
	MaxPatternCount  int           `yaml:"max_pattern_count"`
	MaxGroups        int           `yaml:"max_groups"`
	MaxQuantifiers   int           `yaml:"max_quantifiers"`
	MaxAlternations  int           `yaml:"max_alternations"`
	MaxLookaheads    int           `yaml:"max_lookaheads"`
	PatternTimeout   time.Duration `yaml:"pattern_timeout"`
	MaxPatternInput  int64         `yaml:"max_pattern_input"`

	// Content sampling.
	FullScanThreshold int64 `yaml:"full_scan_threshold"`
	SampleSize        int64 `yaml:"sample_size"`
}

// DefaultWorkerCooldown is how long worker reconnect attempts are skipped
// after a connection failure.
const DefaultWorkerCooldown = 30 * time.Second

// DefaultSecurityLimits returns the built-in limit preset. The values are
// deliberately conservative; operators can raise them via the config file.
func DefaultSecurityLimits() SecurityLimits {
	return SecurityLimits{
		MaxFiles:           1000,
		MaxTotalBytes:      2 * 1024 * 1024 * 1024, // 2 GiB per batch
		MaxConcurrentScans: 4,
		ScanTimeout:        10 * time.Minute,

		MaxSymlinkDepth: 16,

		MaxExtractedFiles:   10000,
		MaxExtractedBytes:   1 * 1024 * 1024 * 1024, // 1 GiB
		MaxNestingDepth:     16,
		MaxCompressionRatio: 100.0,
		MaxExtractionTime:   2 * time.Minute,

		MaxPatternLength: 512,
		MaxPatternCount:  5000,
		MaxGroups:        20,
		MaxQuantifiers:   20,
		MaxAlternations:  20,
		MaxLookaheads:    5,
		PatternTimeout:   2 * time.Second,
		MaxPatternInput:  8 * 1024 * 1024, // 8 MiB per pattern execution

		FullScanThreshold: 16 * 1024 * 1024, // 16 MiB
		SampleSize:        4 * 1024 * 1024,  // head and tail sample size
	}
}

// DefaultEventSink returns the default event sink settings.
func DefaultEventSink() EventSink {
	return EventSink{
		QueueSize:        256,
		RetryCount:       2,
		RetryWaitTime:    1 * time.Second,
		RetryMaxWaitTime: 2 * time.Second,
		Timeout:          5 * time.Second,
	}
}

// WithDefaults fills any unset (zero) ceiling with its default value so a
// partial YAML config never produces an unbounded limit.
func (l SecurityLimits) WithDefaults() SecurityLimits {
	def := DefaultSecurityLimits()

	if l.MaxFiles <= 0 {
		l.MaxFiles = def.MaxFiles
	}
	if l.MaxTotalBytes <= 0 {
		l.MaxTotalBytes = def.MaxTotalBytes
	}
	if l.MaxConcurrentScans <= 0 {
		l.MaxConcurrentScans = def.MaxConcurrentScans
	}
	if l.ScanTimeout <= 0 {
		l.ScanTimeout = def.ScanTimeout
	}
	if l.MaxSymlinkDepth <= 0 {
		l.MaxSymlinkDepth = def.MaxSymlinkDepth
	}
	if l.MaxExtractedFiles <= 0 {
		l.MaxExtractedFiles = def.MaxExtractedFiles
	}
	if l.MaxExtractedBytes <= 0 {
		l.MaxExtractedBytes = def.MaxExtractedBytes
	}
	if l.MaxNestingDepth <= 0 {
		l.MaxNestingDepth = def.MaxNestingDepth
	}
	if l.MaxCompressionRatio <= 0 {
		l.MaxCompressionRatio = def.MaxCompressionRatio
	}
	if l.MaxExtractionTime <= 0 {
		l.MaxExtractionTime = def.MaxExtractionTime
	}
	if l.MaxPatternLength <= 0 {
		l.MaxPatternLength = def.MaxPatternLength
	}
	if l.MaxPatternCount <= 0 {
		l.MaxPatternCount = def.MaxPatternCount
	}
	if l.MaxGroups <= 0 {
		l.MaxGroups = def.MaxGroups
	}
	if l.MaxQuantifiers <= 0 {
		l.MaxQuantifiers = def.MaxQuantifiers
	}
	if l.MaxAlternations <= 0 {
		l.MaxAlternations = def.MaxAlternations
	}
	if l.MaxLookaheads <= 0 {
		l.MaxLookaheads = def.MaxLookaheads
	}
	if l.PatternTimeout <= 0 {
		l.PatternTimeout = def.PatternTimeout
	}
	if l.MaxPatternInput <= 0 {
		l.MaxPatternInput = def.MaxPatternInput
	}
	if l.FullScanThreshold <= 0 {
		l.FullScanThreshold = def.FullScanThreshold
	}
	if l.SampleSize <= 0 {
		l.SampleSize = def.SampleSize
	}

	return l
}

// ValidateLimits rejects limit combinations that cannot be enforced.
func ValidateLimits(l *SecurityLimits) error {
	if l == nil {
		return fmt.Errorf("limits configuration is nil")
	}
	if l.MaxPatternInput < l.SampleSize {
		return fmt.Errorf("max_pattern_input %d is smaller than sample_size %d", l.MaxPatternInput, l.SampleSize)
	}
	if l.SampleSize > l.FullScanThreshold {
		return fmt.Errorf("sample_size %d is larger than full_scan_threshold %d", l.SampleSize, l.FullScanThreshold)
	}
	if l.MaxCompressionRatio < 1 {
		return fmt.Errorf("max_compression_ratio %f must be at least 1", l.MaxCompressionRatio)
	}
	return nil
}
