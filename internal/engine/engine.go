// Package engine matches signature patterns against sampled file content.
// Regex patterns run only when explicitly enabled and only after passing
// static validation at database load; hex and string matching covers the
// common case at zero ReDoS risk.
package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/filescan/internal/matchexec"
	"github.com/scan-io-git/filescan/internal/rxcheck"
	"github.com/scan-io-git/filescan/pkg/shared"
)

// Confidence bases per match type; partial-coverage regions discount them.
const (
	confidenceHex    = 0.95
	confidenceString = 0.85
	confidenceRegex  = 0.75
	partialDiscount  = 0.8
)

type compiledPattern struct {
	signature *shared.MalwareSignature
	source    shared.SignaturePattern
	literal   []byte // decoded bytes for hex, raw bytes for string
	key       string
}

// Engine is constructed once per signature database and reused across
// scans. It holds no per-scan state.
type Engine struct {
	limits      Limits
	validator   *rxcheck.Validator
	executor    *matchexec.Executor
	logger      hclog.Logger
	enableRegex bool

	literals []compiledPattern
	regexes  []compiledPattern
	// rejected holds pattern keys that failed validation at load time.
	// It is consulted again at match time as defense in depth.
	rejected map[string]rxcheck.RejectionReason
}

// Limits is the engine's slice of the security limits.
type Limits struct {
	MaxPatternCount   int
	FullScanThreshold int64
	SampleSize        int64
}

// New compiles the signature database. Regex patterns are validated here,
// once; rejected ones are permanently excluded from matching and reported
// through the returned rejection map (pattern key to reason).
func New(db *shared.SignatureDatabase, limits Limits, validator *rxcheck.Validator,
	executor *matchexec.Executor, enableRegex bool, logger hclog.Logger) (*Engine, error) {
	e := &Engine{
		limits:      limits,
		validator:   validator,
		executor:    executor,
		logger:      logger,
		enableRegex: enableRegex,
		rejected:    make(map[string]rxcheck.RejectionReason),
	}

	total := 0
	for i := range db.Signatures {
		sig := &db.Signatures[i]
		for j, pat := range sig.Patterns {
			total++
			if total > limits.MaxPatternCount {
				return nil, fmt.Errorf("signature database exceeds pattern ceiling %d", limits.MaxPatternCount)
			}

			key := patternKey(sig.ID, j)
			switch pat.Type {
			case shared.PatternHex:
				decoded, err := hex.DecodeString(pat.Value)
				if err != nil {
					return nil, fmt.Errorf("signature %s pattern %d: bad hex: %w", sig.ID, j, err)
				}
				e.literals = append(e.literals, compiledPattern{signature: sig, source: pat, literal: decoded, key: key})
			case shared.PatternString:
				e.literals = append(e.literals, compiledPattern{signature: sig, source: pat, literal: []byte(pat.Value), key: key})
			case shared.PatternRegex:
				res := validator.Validate(pat.Value)
				if !res.Valid {
					e.rejected[key] = res.Reason
					logger.Warn("regex pattern rejected at load",
						"signature", sig.ID, "reason", res.Reason.String())
					continue
				}
				e.regexes = append(e.regexes, compiledPattern{signature: sig, source: pat, key: key})
			default:
				return nil, fmt.Errorf("signature %s pattern %d: unknown type %q", sig.ID, j, pat.Type)
			}
		}
	}

	return e, nil
}

func patternKey(sigID string, index int) string {
	return fmt.Sprintf("%s/%d", sigID, index)
}

// RejectedPatterns returns the load-time rejections keyed by pattern.
func (e *Engine) RejectedPatterns() map[string]rxcheck.RejectionReason {
	out := make(map[string]rxcheck.RejectionReason, len(e.rejected))
	for k, v := range e.rejected {
		out[k] = v
	}
	return out
}

// Scan matches every signature pattern against the sampled content of the
// file at path. Regex timeouts surface as warnings, never as scan failures.
func (e *Engine) Scan(ctx context.Context, path string) ([]shared.ThreatHit, []shared.Warning, error) {
	regions, err := buildRegions(path, e.limits.FullScanThreshold, e.limits.SampleSize)
	if err != nil {
		return nil, nil, err
	}

	var hits []shared.ThreatHit
	var warnings []shared.Warning

	for _, cp := range e.literals {
		hits = append(hits, e.matchLiteral(cp, regions)...)
	}

	if e.enableRegex {
		regexHits, regexWarnings := e.matchRegexes(ctx, regions)
		hits = append(hits, regexHits...)
		warnings = append(warnings, regexWarnings...)
	}

	return hits, warnings, nil
}

func (e *Engine) matchLiteral(cp compiledPattern, regions []region) []shared.ThreatHit {
	var hits []shared.ThreatHit

	for _, reg := range regions {
		if cp.source.Offset != nil {
			abs := *cp.source.Offset
			rel := abs - reg.base
			if rel < 0 || rel+int64(len(cp.literal)) > int64(len(reg.data)) {
				continue
			}
			if bytes.Equal(reg.data[rel:rel+int64(len(cp.literal))], cp.literal) {
				hits = append(hits, e.hit(cp, abs, reg, cp.literal))
			}
			continue
		}

		if idx := bytes.Index(reg.data, cp.literal); idx >= 0 {
			hits = append(hits, e.hit(cp, reg.base+int64(idx), reg, cp.literal))
		}
	}

	return hits
}

func (e *Engine) matchRegexes(ctx context.Context, regions []region) ([]shared.ThreatHit, []shared.Warning) {
	var hits []shared.ThreatHit
	var warnings []shared.Warning

	for _, cp := range e.regexes {
		// Defense in depth: re-check rejection state and re-validate in
		// case the pattern set was swapped without re-validation.
		if _, wasRejected := e.rejected[cp.key]; wasRejected {
			continue
		}
		if res := e.validator.Validate(cp.source.Value); !res.Valid {
			e.logger.Warn("regex pattern failed re-validation at match time",
				"signature", cp.signature.ID, "reason", res.Reason.String())
			continue
		}

		for _, reg := range regions {
			result, err := e.executor.Match(ctx, cp.source.Value, reg.data)
			if err == matchexec.ErrTimeout {
				warnings = append(warnings, shared.Warning{
					Code:     shared.WarnRegexTimeout,
					Message:  "a signature pattern timed out during matching",
					Severity: shared.SeverityWarning,
				})
				continue
			}
			if err != nil {
				e.logger.Debug("regex execution error", "signature", cp.signature.ID, "error", err)
				continue
			}
			for _, m := range result.Matches {
				snippet := reg.data[m.Offset : m.Offset+m.Length]
				hits = append(hits, e.hit(cp, reg.base+int64(m.Offset), reg, snippet))
			}
		}
	}

	return hits, warnings
}

func (e *Engine) hit(cp compiledPattern, offset int64, reg region, snippet []byte) shared.ThreatHit {
	confidence := confidenceString
	switch cp.source.Type {
	case shared.PatternHex:
		confidence = confidenceHex
	case shared.PatternRegex:
		confidence = confidenceRegex
	}
	if reg.kind != shared.RegionFull {
		confidence *= partialDiscount
	}

	sum := sha256.Sum256(snippet)

	return shared.ThreatHit{
		SignatureID:   cp.signature.ID,
		Category:      cp.signature.Category,
		Severity:      cp.signature.Severity,
		MatchType:     cp.source.Type,
		Region:        reg.kind,
		Confidence:    confidence,
		Offset:        offset,
		SnippetSHA256: hex.EncodeToString(sum[:]),
	}
}
