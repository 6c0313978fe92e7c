package events

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/filescan/pkg/shared/config"
)

func newTestSink(t *testing.T, queueSize int) *Sink {
	t.Helper()
	cfg := &config.Config{}
	cfg.EventSink.QueueSize = queueSize
	return NewSink(cfg, hclog.NewNullLogger())
}

func TestSinkDeliversQueuedEvents(t *testing.T) {
	sink := newTestSink(t, 16)

	sink.Emit(KindPatternRejected, "regex pattern rejected", map[string]interface{}{"reason": "backreference"})
	sink.Emit(KindLimitExceeded, "batch limit exceeded", nil)
	sink.Close()

	assert.Equal(t, uint64(0), sink.Dropped())
}

func TestSinkDropsWhenQueueFull(t *testing.T) {
	cfg := &config.Config{}
	cfg.EventSink.QueueSize = 1

	// No delivery goroutine competition: fill the queue directly.
	sink := &Sink{
		cfg:    cfg.EventSink,
		logger: hclog.NewNullLogger(),
		queue:  make(chan Event, 1),
	}

	sink.Emit(KindRegexTimeout, "first fills the queue", nil)
	sink.Emit(KindRegexTimeout, "second is dropped", nil)

	require.Equal(t, uint64(1), sink.Dropped())
}

func TestSinkCloseIsIdempotent(t *testing.T) {
	sink := newTestSink(t, 4)
	sink.Close()
	sink.Close()
}
