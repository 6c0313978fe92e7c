// Package scanner orchestrates a batch scan: pre-check, bounded-parallel
// per-path scanning, and order-preserving result merging. The global time
// budget is checked cooperatively between work items; in-flight items
// finish, unscanned items are reported incomplete, never dropped.
package scanner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/filescan/internal/archive"
	"github.com/scan-io-git/filescan/internal/engine"
	"github.com/scan-io-git/filescan/internal/events"
	"github.com/scan-io-git/filescan/internal/precheck"
	"github.com/scan-io-git/filescan/pkg/shared"
	"github.com/scan-io-git/filescan/pkg/shared/config"
)

// Scanner runs batches against a compiled signature engine. It holds no
// per-batch state; a single Scanner may serve many batches.
type Scanner struct {
	limits    config.SecurityLimits
	engine    *engine.Engine
	extractor *archive.Extractor
	events    *events.Sink
	logger    hclog.Logger
}

func New(limits config.SecurityLimits, eng *engine.Engine, extractor *archive.Extractor,
	sink *events.Sink, logger hclog.Logger) *Scanner {
	return &Scanner{
		limits:    limits,
		engine:    eng,
		extractor: extractor,
		events:    sink,
		logger:    logger,
	}
}

// progress is the shared state of one batch run. All mutation goes through
// the mutex so increments are atomic with respect to the budget check.
type progress struct {
	mu             sync.Mutex
	bytesScanned   int64
	completed      int
	budgetExceeded bool
}

// dispatchAllowed reports whether a new work item may start. Once the
// wall-clock budget is exhausted no further item is dispatched; items
// already running are allowed to finish.
func (p *progress) dispatchAllowed(deadline time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.budgetExceeded {
		return false
	}
	if time.Now().After(deadline) {
		p.budgetExceeded = true
		return false
	}
	return true
}

func (p *progress) record(bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bytesScanned += bytes
	p.completed++
}

// ScanBatch pre-checks, scans and merges one batch. The returned slice has
// the same length and order as paths; duplicates reuse the first
// occurrence's result under their own requested path.
func (s *Scanner) ScanBatch(ctx context.Context, paths []string, scanRoot string) []shared.ScanResult {
	pre := precheck.PreCheck(paths, scanRoot, s.limits, s.logger)

	for i := range pre.RejectedByIndex {
		res := pre.RejectedByIndex[i]
		s.events.Emit(events.KindResolutionFailed, res.Warnings[0].Message,
			map[string]interface{}{"path": res.RequestPath, "code": string(res.Warnings[0].Code)})
	}

	if pre.LimitExceeded != nil {
		s.events.Emit(events.KindBatchRejected, "batch rejected before scanning",
			map[string]interface{}{
				"limit":  pre.LimitExceeded.Kind.String(),
				"actual": pre.LimitExceeded.Actual,
				"max":    pre.LimitExceeded.Max,
			})
		return pre.RejectAll()
	}

	s.logger.Info("batch pre-check passed",
		"deduped", len(pre.DedupedPaths),
		"duplicates", pre.DuplicateCount,
		"rejected", pre.InaccessibleCount,
		"total_bytes", pre.TotalBytes)

	deadline := time.Now().Add(s.limits.ScanTimeout)
	prog := &progress{}

	byCanonical := make(map[string]shared.ScanResult, len(pre.DedupedPaths))
	var resultsMu sync.Mutex

	values := make([]interface{}, len(pre.DedupedPaths))
	for i := range pre.DedupedPaths {
		values[i] = pre.DedupedPaths[i]
	}

	shared.ForEveryStringWithBoundedGoroutines(s.limits.MaxConcurrentScans, values, func(i int, value interface{}) {
		canonical := value.(string)

		if !prog.dispatchAllowed(deadline) {
			// Left out of byCanonical; the merge reports it incomplete.
			return
		}

		outcome := s.scanPath(ctx, canonical)
		prog.record(outcome.bytes)

		resultsMu.Lock()
		byCanonical[canonical] = outcome.scan
		resultsMu.Unlock()
	})

	if prog.budgetExceeded {
		s.logger.Warn("batch time budget exhausted",
			"completed", prog.completed, "total", len(pre.DedupedPaths))
		s.events.Emit(events.KindLimitExceeded, "batch time budget exhausted",
			map[string]interface{}{"completed": prog.completed, "total": len(pre.DedupedPaths)})
	}

	return precheck.MergeResults(&pre, byCanonical)
}

type pathOutcome struct {
	scan  shared.ScanResult
	bytes int64
}

// scanPath scans one canonical path: container formats dispatch through the
// extractor, everything else goes straight to the signature engine.
func (s *Scanner) scanPath(ctx context.Context, canonical string) pathOutcome {
	result := shared.ScanResult{
		RequestPath:   canonical,
		CanonicalPath: canonical,
		Verdict:       shared.VerdictSafe,
		Methods:       []shared.ScanMethod{shared.MethodPreCheck},
	}

	var scanned int64
	if info, err := os.Stat(canonical); err == nil {
		scanned = info.Size()
	}

	format, err := archive.Detect(canonical)
	if err != nil {
		result.Verdict = shared.VerdictUnknown
		result.Warnings = append(result.Warnings, shared.Warning{
			Code:     shared.WarnInaccessible,
			Message:  "file could not be read for format detection",
			Severity: shared.SeverityWarning,
		})
		return pathOutcome{scan: result}
	}

	targets := []string{canonical}
	if format.Capability() == archive.FullExtraction {
		extracted, scratch, warning, ok := s.extractArchive(canonical)
		result.Methods = append(result.Methods, shared.MethodArchive)
		if scratch != "" {
			defer os.RemoveAll(scratch)
		}
		if !ok {
			result.Verdict = shared.VerdictUnknown
			result.Warnings = append(result.Warnings, warning)
			return pathOutcome{scan: result, bytes: scanned}
		}
		targets = extracted
	}

	result.Methods = append(result.Methods, shared.MethodSignature)

	for _, target := range targets {
		hits, warnings, err := s.engine.Scan(ctx, target)
		if err != nil {
			result.Verdict = shared.VerdictUnknown
			result.Warnings = append(result.Warnings, shared.Warning{
				Code:     shared.WarnInaccessible,
				Message:  "file content could not be scanned",
				Severity: shared.SeverityWarning,
			})
			continue
		}
		result.Threats = append(result.Threats, hits...)
		result.Warnings = append(result.Warnings, warnings...)
		for _, w := range warnings {
			if w.Code == shared.WarnRegexTimeout {
				s.events.Emit(events.KindRegexTimeout, w.Message, map[string]interface{}{"path": target})
			}
		}
	}

	if result.Verdict != shared.VerdictUnknown {
		result.Verdict = verdictFor(result.Threats)
	}

	return pathOutcome{scan: result, bytes: scanned}
}

// extractArchive runs the bounded extractor into a scratch directory the
// caller removes after scanning. Aborted extractions map to a single
// archive warning naming the reason.
func (s *Scanner) extractArchive(canonical string) ([]string, string, shared.Warning, bool) {
	dest, err := os.MkdirTemp("", "filescan-extract-*")
	if err != nil {
		return nil, "", shared.Warning{
			Code:     shared.WarnArchiveAborted,
			Message:  "archive scratch directory could not be created",
			Severity: shared.SeverityWarning,
		}, false
	}

	res, err := s.extractor.Extract(canonical, dest)
	if err != nil {
		s.logger.Debug("archive extraction error", "error", err)
	}
	if res.Aborted {
		s.events.Emit(events.KindArchiveAborted, "archive extraction aborted",
			map[string]interface{}{
				"path":   canonical,
				"reason": res.AbortReason.String(),
				"files":  res.Stats.FileCount,
				"bytes":  res.Stats.Bytes,
				"ratio":  res.Stats.Ratio,
			})
		return nil, dest, shared.Warning{
			Code:     shared.WarnArchiveAborted,
			Message:  fmt.Sprintf("archive extraction aborted: %s", res.AbortReason),
			Severity: shared.SeverityWarning,
		}, false
	}

	return res.ExtractedPaths, dest, shared.Warning{}, true
}

// verdictFor maps threat hits onto the closed verdict set: any critical
// signature makes the path unsafe, any hit at all makes it a warning.
func verdictFor(threats []shared.ThreatHit) shared.Verdict {
	if len(threats) == 0 {
		return shared.VerdictSafe
	}
	for _, hit := range threats {
		if hit.Severity == shared.SeverityCritical {
			return shared.VerdictUnsafe
		}
	}
	return shared.VerdictWarning
}
