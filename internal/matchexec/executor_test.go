package matchexec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFallbackExecutor(timeout time.Duration) *Executor {
	return New(Options{
		Timeout:  timeout,
		MaxInput: 1 << 20,
		Cooldown: time.Hour,
	}, hclog.NewNullLogger())
}

func TestMatchInProcessSimple(t *testing.T) {
	e := newFallbackExecutor(time.Second)

	result, err := e.Match(context.Background(), `needle`, []byte("hay needle hay needle"))
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, 4, result.Matches[0].Offset)
	assert.Equal(t, 6, result.Matches[0].Length)
	assert.Equal(t, 15, result.Matches[1].Offset)
	assert.False(t, result.ViaWorker)
}

func TestMatchNoMatchIsNotAnError(t *testing.T) {
	e := newFallbackExecutor(time.Second)

	result, err := e.Match(context.Background(), `absent`, []byte("nothing here"))
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestMatchCompileError(t *testing.T) {
	e := newFallbackExecutor(time.Second)

	_, err := e.Match(context.Background(), `(unclosed`, []byte("input"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestMatchTimeoutIsDistinct(t *testing.T) {
	e := newFallbackExecutor(100 * time.Millisecond)

	// A pattern the static validator would reject, constructed to
	// backtrack far past the budget.
	input := strings.Repeat("a", 64) + "!"
	start := time.Now()
	_, err := e.Match(context.Background(), `(a+)+$`, []byte(input))
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	// Terminated within a bounded margin of the configured timeout.
	assert.Less(t, elapsed, 2*time.Second)
}

func TestMatchInputCap(t *testing.T) {
	e := New(Options{
		Timeout:  time.Second,
		MaxInput: 16,
		Cooldown: time.Hour,
	}, hclog.NewNullLogger())

	// The needle sits beyond the input cap and must not be visible.
	input := []byte(strings.Repeat("x", 16) + "needle")
	result, err := e.Match(context.Background(), `needle`, input)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestWorkerFailureStartsCooldown(t *testing.T) {
	e := New(Options{
		WorkerPath: "/nonexistent/rematch-worker",
		Timeout:    time.Second,
		MaxInput:   1 << 20,
		Cooldown:   time.Hour,
	}, hclog.NewNullLogger())

	require.True(t, e.workerAvailable())

	// The worker spawn fails; the call degrades to the fallback and the
	// cooldown window opens.
	result, err := e.Match(context.Background(), `abc`, []byte("xxabcxx"))
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
	assert.False(t, result.ViaWorker)

	assert.False(t, e.workerAvailable())
}

func TestClearCooldown(t *testing.T) {
	e := New(Options{
		WorkerPath: "/nonexistent/rematch-worker",
		Timeout:    time.Second,
		MaxInput:   1 << 20,
		Cooldown:   time.Hour,
	}, hclog.NewNullLogger())

	e.startCooldown()
	require.False(t, e.workerAvailable())

	e.clearCooldown()
	assert.True(t, e.workerAvailable())
}

func TestTimeoutErrorClassification(t *testing.T) {
	// Only the regexp2 budget-expiry message counts as a timeout; an
	// unrelated engine error mentioning one must stay a plain error.
	assert.True(t, isTimeoutError(errors.New("match timeout after waiting: 2s")))
	assert.False(t, isTimeoutError(errors.New("network timeout while dialing")))
	assert.False(t, isTimeoutError(errors.New("error parsing group: bad timeout token")))
}

func TestEvalPatternOffsets(t *testing.T) {
	resp := EvalPattern(`o+`, []byte("foo booo"), time.Second)
	require.Empty(t, resp.Err)
	require.False(t, resp.TimedOut)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, 1, resp.Matches[0].Offset)
	assert.Equal(t, 2, resp.Matches[0].Length)
	assert.Equal(t, 5, resp.Matches[1].Offset)
	assert.Equal(t, 3, resp.Matches[1].Length)
}
