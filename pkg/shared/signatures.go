package shared

// PatternType discriminates how a signature pattern is interpreted.
type PatternType string

const (
	PatternHex    PatternType = "hex"
	PatternString PatternType = "string"
	PatternRegex  PatternType = "regex"
)

// SignaturePattern is one matchable unit of a signature. Offset, when
// non-nil, pins the pattern to a fixed byte position; otherwise the whole
// sampled buffer is searched.
type SignaturePattern struct {
	Type   PatternType `json:"type" yaml:"type"`
	Value  string      `json:"value" yaml:"value"`
	Offset *int64      `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// MalwareSignature groups the patterns that identify one threat.
type MalwareSignature struct {
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Category string             `json:"category" yaml:"category"`
	Severity Severity           `json:"severity" yaml:"severity"`
	Patterns []SignaturePattern `json:"patterns" yaml:"patterns"`
}

// SignatureDatabase is the externally supplied, already key-verified set of
// signatures. The scanning core treats it as read-only.
type SignatureDatabase struct {
	Version    string             `json:"version" yaml:"version"`
	Signatures []MalwareSignature `json:"signatures" yaml:"signatures"`
}

func intPtr(v int64) *int64 { return &v }

// BuiltinSignatures returns the signature set compiled into the binary.
// It is constructed once at startup and passed explicitly to the engine;
// there is no ambient global state.
func BuiltinSignatures() *SignatureDatabase {
	return &SignatureDatabase{
		Version: "builtin-1",
		Signatures: []MalwareSignature{
			{
				ID:       "FS-TEST-001",
				Name:     "EICAR test file",
				Category: "test",
				Severity: SeverityCritical,
				Patterns: []SignaturePattern{
					{Type: PatternString, Value: `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`},
				},
			},
			{
				ID:       "FS-SHELL-001",
				Name:     "Embedded ELF header at archive payload start",
				Category: "dropper",
				Severity: SeverityWarning,
				Patterns: []SignaturePattern{
					{Type: PatternHex, Value: "7f454c46", Offset: intPtr(0)},
				},
			},
			{
				ID:       "FS-SHELL-002",
				Name:     "Mach-O 64-bit header",
				Category: "dropper",
				Severity: SeverityWarning,
				Patterns: []SignaturePattern{
					{Type: PatternHex, Value: "cffaedfe", Offset: intPtr(0)},
				},
			},
			{
				ID:       "FS-SCRIPT-001",
				Name:     "Reverse shell one-liner",
				Category: "backdoor",
				Severity: SeverityCritical,
				Patterns: []SignaturePattern{
					{Type: PatternString, Value: "bash -i >& /dev/tcp/"},
					{Type: PatternString, Value: "nc -e /bin/sh"},
				},
			},
			{
				ID:       "FS-SCRIPT-002",
				Name:     "Base64 decode piped to shell",
				Category: "obfuscation",
				Severity: SeverityWarning,
				Patterns: []SignaturePattern{
					{Type: PatternRegex, Value: `base64 (-d|--decode)[^\n]{0,80}\| ?(ba)?sh`},
				},
			},
		},
	}
}
