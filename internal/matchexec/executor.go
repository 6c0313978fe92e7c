// Package matchexec executes validated regex patterns with a hard wall-clock
// bound. The preferred path is an isolated worker process that is killed
// unconditionally on overrun; the in-process race is a best-effort fallback
// used only when the worker is unreachable, because cancellation cannot
// interrupt a backtracking engine mid-match.
package matchexec

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/filescan/pkg/shared"
)

// ErrTimeout is returned when pattern execution overran its budget. It is
// distinct from both "no match" (empty result, nil error) and engine errors.
var ErrTimeout = errors.New("pattern execution timed out")

// Result holds the match locations of one pattern execution.
type Result struct {
	Matches []shared.RegexMatch
	// ViaWorker records whether the isolated worker produced the result.
	ViaWorker bool
}

// Options configure an Executor.
type Options struct {
	// WorkerPath is the rematch worker binary. Empty disables the worker
	// and every execution uses the in-process fallback.
	WorkerPath string
	// Timeout is the per-pattern wall-clock budget.
	Timeout time.Duration
	// MaxInput caps the buffer handed to the engine.
	MaxInput int64
	// Cooldown is how long worker attempts are skipped after a connection
	// failure. A single successful round trip clears it.
	Cooldown time.Duration
}

// Executor runs patterns through the worker or the fallback. It is safe for
// concurrent use; the only mutable state is the worker-availability cooldown.
type Executor struct {
	opts   Options
	logger hclog.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
}

func New(opts Options, logger hclog.Logger) *Executor {
	return &Executor{opts: opts, logger: logger}
}

// Match executes pattern over input within the configured budget.
func (e *Executor) Match(ctx context.Context, pattern string, input []byte) (Result, error) {
	if int64(len(input)) > e.opts.MaxInput {
		input = input[:e.opts.MaxInput]
	}

	if e.workerAvailable() {
		result, err := e.matchViaWorker(pattern, input)
		if err == nil || errors.Is(err, ErrTimeout) {
			e.clearCooldown()
			return result, err
		}
		// Connection-level failure: start the cooldown window and degrade.
		e.startCooldown()
		e.logger.Warn("match worker unreachable, falling back in-process", "error", err)
	}

	return e.matchInProcess(ctx, pattern, input)
}

func (e *Executor) workerAvailable() bool {
	if e.opts.WorkerPath == "" {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Now().After(e.cooldownUntil)
}

func (e *Executor) startCooldown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldownUntil = time.Now().Add(e.opts.Cooldown)
}

func (e *Executor) clearCooldown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldownUntil = time.Time{}
}

// matchViaWorker runs the pattern in a freshly spawned worker process and
// kills the process if it overruns the budget. Killing is the only way to
// bound an engine whose internal cancellation cannot interrupt in-progress
// backtracking.
func (e *Executor) matchViaWorker(pattern string, input []byte) (Result, error) {
	matcher, client, err := shared.NewMatcherClient(e.opts.WorkerPath, e.logger.Named("rematch"))
	if err != nil {
		return Result{}, err
	}
	defer client.Kill()

	req := shared.MatchRequest{
		Pattern:       pattern,
		Input:         input,
		TimeoutMillis: e.opts.Timeout.Milliseconds(),
	}

	type reply struct {
		resp shared.MatchResponse
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := matcher.Match(req)
		done <- reply{resp: resp, err: err}
	}()

	timer := time.NewTimer(e.opts.Timeout + e.opts.Timeout/2)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return Result{}, r.err
		}
		if r.resp.TimedOut {
			return Result{ViaWorker: true}, ErrTimeout
		}
		if r.resp.Err != "" {
			return Result{ViaWorker: true}, errors.New(r.resp.Err)
		}
		return Result{Matches: r.resp.Matches, ViaWorker: true}, nil
	case <-timer.C:
		client.Kill()
		return Result{ViaWorker: true}, ErrTimeout
	}
}

// matchInProcess races the engine against the budget. The losing goroutine
// is abandoned, not interrupted; regexp2's own MatchTimeout usually stops it
// shortly after. This path degrades availability, it does not guarantee it.
func (e *Executor) matchInProcess(ctx context.Context, pattern string, input []byte) (Result, error) {
	done := make(chan shared.MatchResponse, 1)
	go func() {
		done <- EvalPattern(pattern, input, e.opts.Timeout)
	}()

	timer := time.NewTimer(e.opts.Timeout + e.opts.Timeout/2)
	defer timer.Stop()

	select {
	case resp := <-done:
		if resp.TimedOut {
			return Result{}, ErrTimeout
		}
		if resp.Err != "" {
			return Result{}, errors.New(resp.Err)
		}
		return Result{Matches: resp.Matches}, nil
	case <-timer.C:
		return Result{}, ErrTimeout
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
