// Package precheck deduplicates a batch of input paths by canonical
// identity and computes its aggregate resource cost before any expensive
// scanning begins. A batch that would exceed a ceiling is rejected whole
// rather than truncated, so an attacker cannot hide a single huge file by
// packaging it with many small ones.
package precheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/filescan/internal/pathresolve"
	"github.com/scan-io-git/filescan/pkg/shared"
	"github.com/scan-io-git/filescan/pkg/shared/config"
)

// LimitKind names which batch ceiling was exceeded.
type LimitKind int

const (
	LimitFileCount LimitKind = iota
	LimitTotalBytes
)

func (k LimitKind) String() string {
	switch k {
	case LimitFileCount:
		return "file_count"
	case LimitTotalBytes:
		return "total_bytes"
	default:
		return "unknown"
	}
}

// LimitViolation reports both the actual and configured values so operators
// can see how far over the ceiling the batch was.
type LimitViolation struct {
	Kind   LimitKind
	Actual int64
	Max    int64
}

func (v LimitViolation) String() string {
	return fmt.Sprintf("%s: %d exceeds maximum %d", v.Kind, v.Actual, v.Max)
}

// Result is the outcome of one PreCheck call. Every input index appears in
// exactly one of: canonicalByIndex (the working set), RejectedByIndex, or
// DuplicateOfIndex.
type Result struct {
	// Requested holds the input paths as supplied, in order.
	Requested []string
	// DedupedPaths is the working set of canonical paths, first-occurrence
	// order preserved.
	DedupedPaths []string
	// TotalBytes is the accumulated size of the working set.
	TotalBytes int64
	// InaccessibleCount counts inputs whose resolution failed.
	InaccessibleCount int
	// DuplicateCount counts inputs that resolved to an already-seen
	// canonical path.
	DuplicateCount int
	// LimitExceeded is non-nil when a batch ceiling was exceeded; the
	// whole batch must then be rejected.
	LimitExceeded *LimitViolation
	// RejectedByIndex maps an input index to its synthesized terminal
	// result. Rejected paths never enter the working set and never count
	// toward limits.
	RejectedByIndex map[int]shared.ScanResult
	// DuplicateOfIndex maps a duplicate input index to the index of the
	// first occurrence of the same canonical path.
	DuplicateOfIndex map[int]int

	canonicalByIndex map[int]string
}

// CanonicalFor returns the canonical path resolved for an input index in
// the working set.
func (r *Result) CanonicalFor(index int) (string, bool) {
	p, ok := r.canonicalByIndex[index]
	return p, ok
}

// warningCode maps each resolution failure onto its own warning code. The
// five codes are never collapsed into a generic one: the orchestrator and
// the event stream both need to tell them apart.
func warningCode(kind pathresolve.FailureKind) shared.WarningCode {
	switch kind {
	case pathresolve.RealpathFailed:
		return shared.WarnRealpathFailed
	case pathresolve.OutsideScanRoot:
		return shared.WarnOutsideScanRoot
	case pathresolve.DepthExceeded:
		return shared.WarnSymlinkDepth
	case pathresolve.CircularLink:
		return shared.WarnCircularLink
	default:
		return shared.WarnInaccessible
	}
}

func warningMessage(kind pathresolve.FailureKind) string {
	switch kind {
	case pathresolve.RealpathFailed:
		return "path could not be canonicalized"
	case pathresolve.OutsideScanRoot:
		return "path resolves outside the scan boundary"
	case pathresolve.DepthExceeded:
		return "symlink chain exceeds the configured depth limit"
	case pathresolve.CircularLink:
		return "symlink chain contains a cycle"
	default:
		return "file is inaccessible"
	}
}

// PreCheck resolves, deduplicates and cost-checks a batch of input paths.
// scanRoot, when empty, defaults per path to that path's parent directory.
// Resolution failures become terminal "unknown" results; they are never
// silently treated as clean.
func PreCheck(paths []string, scanRoot string, limits config.SecurityLimits, logger hclog.Logger) Result {
	result := Result{
		Requested:        append([]string(nil), paths...),
		RejectedByIndex:  make(map[int]shared.ScanResult),
		DuplicateOfIndex: make(map[int]int),
		canonicalByIndex: make(map[int]string),
	}

	firstIndex := make(map[string]int)

	for i, path := range paths {
		root := scanRoot
		if root == "" {
			root = filepath.Dir(path)
		}

		resolved, err := pathresolve.Resolve(path, root, limits.MaxSymlinkDepth)
		if err != nil {
			kind := pathresolve.Inaccessible
			var resErr *pathresolve.ResolutionError
			if errors.As(err, &resErr) {
				kind = resErr.Kind
			}
			logger.Debug("path rejected at pre-check", "index", i, "cause", kind.String())
			result.InaccessibleCount++
			result.RejectedByIndex[i] = shared.UnknownResult(path, warningCode(kind), warningMessage(kind))
			continue
		}

		canonical := resolved.CanonicalPath
		if first, seen := firstIndex[canonical]; seen {
			result.DuplicateCount++
			result.DuplicateOfIndex[i] = first
			continue
		}

		info, err := os.Stat(canonical)
		if err != nil {
			result.InaccessibleCount++
			result.RejectedByIndex[i] = shared.UnknownResult(path, shared.WarnInaccessible, warningMessage(pathresolve.Inaccessible))
			continue
		}

		firstIndex[canonical] = i
		result.canonicalByIndex[i] = canonical
		result.TotalBytes += info.Size()
		result.DedupedPaths = append(result.DedupedPaths, canonical)
	}

	if count := len(result.DedupedPaths); count > limits.MaxFiles {
		result.LimitExceeded = &LimitViolation{Kind: LimitFileCount, Actual: int64(count), Max: int64(limits.MaxFiles)}
	} else if result.TotalBytes > limits.MaxTotalBytes {
		result.LimitExceeded = &LimitViolation{Kind: LimitTotalBytes, Actual: result.TotalBytes, Max: limits.MaxTotalBytes}
	}

	if result.LimitExceeded != nil {
		logger.Warn("batch rejected at pre-check", "violation", result.LimitExceeded.String())
	}

	return result
}

// RejectAll builds the per-index results for a batch refused wholesale. The
// message names the ceiling and both values; it carries no paths.
func (r *Result) RejectAll() []shared.ScanResult {
	message := "batch rejected before scanning"
	if r.LimitExceeded != nil {
		message = fmt.Sprintf("batch rejected before scanning: %s", r.LimitExceeded.String())
	}

	out := make([]shared.ScanResult, len(r.Requested))
	for i, path := range r.Requested {
		if rejected, ok := r.RejectedByIndex[i]; ok {
			out[i] = rejected
			continue
		}
		out[i] = shared.UnknownResult(path, shared.WarnBatchLimit, message)
	}
	return out
}

// MergeResults reconstructs the per-input result list in original order.
// Duplicates clone the first occurrence's result but keep their own
// requested path; a missing canonical lookup is reported as incomplete
// rather than omitted, so an overall timeout can never drop an input.
func MergeResults(pre *Result, byCanonical map[string]shared.ScanResult) []shared.ScanResult {
	out := make([]shared.ScanResult, len(pre.Requested))

	for i, path := range pre.Requested {
		if rejected, ok := pre.RejectedByIndex[i]; ok {
			out[i] = rejected
			continue
		}
		if _, isDup := pre.DuplicateOfIndex[i]; isDup {
			continue // filled below, after first occurrences are in place
		}

		canonical := pre.canonicalByIndex[i]
		if res, ok := byCanonical[canonical]; ok {
			res.RequestPath = path
			out[i] = res
			continue
		}
		incomplete := shared.UnknownResult(path, shared.WarnScanIncomplete, "scan incomplete: batch time budget exhausted")
		incomplete.CanonicalPath = canonical
		out[i] = incomplete
	}

	for i, first := range pre.DuplicateOfIndex {
		out[i] = out[first].Clone(pre.Requested[i])
	}

	return out
}

// WithTimeout races op against a wall-clock budget. Whichever finishes
// first wins; the loser's context is cancelled. The operation's side
// effects after cancellation must not be observable to the caller.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
