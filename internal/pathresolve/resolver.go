// Package pathresolve canonicalizes untrusted file paths while detecting
// symlink cycles, excessive chain depth, and escapes from a scan boundary.
//
// Resolution deliberately does not rely on a single canonicalization
// syscall: realpath alone yields only success or failure and cannot
// distinguish "hit the system symlink-loop limit" from "hit our configured
// depth limit". The chain is walked manually instead.
package pathresolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FailureKind is the closed set of resolution failure causes. Exactly one
// cause is reported per failed resolution.
type FailureKind int

const (
	RealpathFailed FailureKind = iota
	OutsideScanRoot
	DepthExceeded
	CircularLink
	Inaccessible
)

func (k FailureKind) String() string {
	switch k {
	case RealpathFailed:
		return "realpath_failed"
	case OutsideScanRoot:
		return "outside_scan_root"
	case DepthExceeded:
		return "depth_exceeded"
	case CircularLink:
		return "circular_link"
	case Inaccessible:
		return "inaccessible"
	default:
		return "unknown"
	}
}

// ResolvedPath is the successful outcome of resolving one raw path. It is
// valid only for the filesystem state observed during the call; callers must
// not cache it across scans.
type ResolvedPath struct {
	CanonicalPath string
	ChainDepth    int
}

// ResolutionError reports why a path could not be resolved. Callers must
// treat any resolution failure as verdict "unknown", never as "clean".
type ResolutionError struct {
	Kind FailureKind
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %q: %s", e.Path, e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func failure(kind FailureKind, path string, err error) (ResolvedPath, error) {
	return ResolvedPath{}, &ResolutionError{Kind: kind, Path: path, Err: err}
}

// Resolve walks the symlink chain of path manually, then canonicalizes the
// terminal target and verifies it lies inside scanRoot. An empty scanRoot
// skips the boundary check. maxDepth bounds the number of links followed.
func Resolve(path, scanRoot string, maxDepth int) (ResolvedPath, error) {
	current := path
	if !filepath.IsAbs(current) {
		abs, err := filepath.Abs(current)
		if err != nil {
			return failure(Inaccessible, path, err)
		}
		current = abs
	}
	current = filepath.Clean(current)

	visited := make(map[string]struct{})
	depth := 0

	for {
		if _, seen := visited[current]; seen {
			return failure(CircularLink, path, nil)
		}
		visited[current] = struct{}{}

		info, err := os.Lstat(current)
		if err != nil {
			return failure(Inaccessible, path, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			break
		}

		// Depth is checked before following the next link so a chain of
		// exactly maxDepth links still resolves.
		if depth+1 > maxDepth {
			return failure(DepthExceeded, path, nil)
		}

		target, err := os.Readlink(current)
		if err != nil {
			return failure(Inaccessible, path, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = filepath.Clean(target)
		depth++
	}

	canonical, err := filepath.EvalSymlinks(current)
	if err != nil {
		return failure(RealpathFailed, path, err)
	}
	if !filepath.IsAbs(canonical) {
		canonical, err = filepath.Abs(canonical)
		if err != nil {
			return failure(RealpathFailed, path, err)
		}
	}

	if scanRoot != "" {
		rootCanonical, err := filepath.EvalSymlinks(scanRoot)
		if err != nil {
			return failure(RealpathFailed, path, err)
		}
		if !isWithin(rootCanonical, canonical) {
			return failure(OutsideScanRoot, path, nil)
		}
	}

	return ResolvedPath{CanonicalPath: canonical, ChainDepth: depth}, nil
}

// isWithin reports whether target equals root or lives under it. The
// trailing separator is normalized explicitly so "/root2" is never treated
// as inside "/root".
func isWithin(root, target string) bool {
	sep := string(os.PathSeparator)
	root = strings.TrimSuffix(root, sep)
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+sep)
}
