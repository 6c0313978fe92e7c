package shared

// Verdict is the final classification of a scanned path. The set is closed:
// every result carries exactly one of these values.
type Verdict string

const (
	VerdictSafe    Verdict = "safe"
	VerdictWarning Verdict = "warning"
	VerdictUnsafe  Verdict = "unsafe"
	VerdictUnknown Verdict = "unknown"
)

// Severity grades a warning for downstream consumers.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// WarningCode is a machine-readable warning identifier. Resolution failures
// keep five distinct codes; they are never collapsed into a generic one.
type WarningCode string

const (
	WarnRealpathFailed  WarningCode = "REALPATH_FAILED"
	WarnOutsideScanRoot WarningCode = "OUTSIDE_SCAN_ROOT"
	WarnSymlinkDepth    WarningCode = "SYMLINK_DEPTH_EXCEEDED"
	WarnCircularLink    WarningCode = "CIRCULAR_SYMLINK"
	WarnInaccessible    WarningCode = "FILE_INACCESSIBLE"

	WarnBatchLimit      WarningCode = "BATCH_LIMIT_EXCEEDED"
	WarnScanIncomplete  WarningCode = "SCAN_INCOMPLETE_TIMEOUT"
	WarnArchiveAborted  WarningCode = "ARCHIVE_ABORTED"
	WarnPatternRejected WarningCode = "PATTERN_REJECTED"
	WarnRegexTimeout    WarningCode = "REGEX_TIMEOUT"
)

// Warning describes a non-fatal condition attached to a scan result. The
// message must be path-free: raw paths stay in the privileged debug channel.
type Warning struct {
	Code     WarningCode `json:"code"`
	Message  string      `json:"message"`
	Severity Severity    `json:"severity"`
}

// MatchRegion records which part of the file a pattern matched in.
// Partial-coverage regions discount confidence; they are never conflated
// with a full scan.
type MatchRegion string

const (
	RegionFull    MatchRegion = "full"
	RegionHead    MatchRegion = "head"
	RegionTail    MatchRegion = "tail"
	RegionStrided MatchRegion = "strided"
)

// ScanMethod names a technique that was actually applied to a path.
type ScanMethod string

const (
	MethodPreCheck  ScanMethod = "precheck"
	MethodSignature ScanMethod = "signature"
	MethodArchive   ScanMethod = "archive"
	MethodRegex     ScanMethod = "regex"
)

// ThreatHit is a single signature match. The matched bytes themselves are
// never carried; only a hash of the snippet crosses the trust boundary.
type ThreatHit struct {
	SignatureID   string      `json:"signature_id"`
	Category      string      `json:"category"`
	Severity      Severity    `json:"severity"`
	MatchType     PatternType `json:"match_type"`
	Region        MatchRegion `json:"region"`
	Confidence    float64     `json:"confidence"`
	Offset        int64       `json:"offset"`
	SnippetSHA256 string      `json:"snippet_sha256"`
}

// ScanResult is the per-path output of the scanning core. RequestPath is the
// path as the caller supplied it; CanonicalPath is the file actually scanned.
// For duplicates within a batch the two differ.
type ScanResult struct {
	RequestPath   string       `json:"request_path"`
	CanonicalPath string       `json:"canonical_path,omitempty"`
	Verdict       Verdict      `json:"verdict"`
	Methods       []ScanMethod `json:"methods,omitempty"`
	Threats       []ThreatHit  `json:"threats,omitempty"`
	Warnings      []Warning    `json:"warnings,omitempty"`
}

// Clone returns a deep copy with a different request path, used when a
// duplicate input path reuses the first occurrence's result.
func (r ScanResult) Clone(requestPath string) ScanResult {
	out := r
	out.RequestPath = requestPath
	out.Methods = append([]ScanMethod(nil), r.Methods...)
	out.Threats = append([]ThreatHit(nil), r.Threats...)
	out.Warnings = append([]Warning(nil), r.Warnings...)
	return out
}

// UnknownResult builds the conservative result used whenever the core cannot
// examine a path. Resolution failure is never treated as "file is clean".
func UnknownResult(requestPath string, code WarningCode, message string) ScanResult {
	return ScanResult{
		RequestPath: requestPath,
		Verdict:     VerdictUnknown,
		Methods:     []ScanMethod{MethodPreCheck},
		Warnings: []Warning{
			{Code: code, Message: message, Severity: SeverityWarning},
		},
	}
}
