// Package events fans structured security events out to the logger and an
// optional webhook. Delivery is asynchronous over a bounded queue: the scan
// path emits and moves on, and a full queue drops the event rather than
// blocking.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/filescan/pkg/shared/config"
	"github.com/scan-io-git/filescan/pkg/shared/httpclient"
)

// Kind is the closed set of security event types the core emits.
type Kind string

const (
	KindPatternRejected  Kind = "pattern_rejected"
	KindResolutionFailed Kind = "resolution_failed"
	KindLimitExceeded    Kind = "limit_exceeded"
	KindArchiveAborted   Kind = "archive_aborted"
	KindRegexTimeout     Kind = "regex_timeout"
	KindBatchRejected    Kind = "batch_rejected"
)

// Event is one structured security event. Message is sanitized and carries
// no paths; Detail holds raw diagnostic fields and is surfaced only on the
// privileged debug channel.
type Event struct {
	ID      string                 `json:"id"`
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Time    time.Time              `json:"time"`
	Detail  map[string]interface{} `json:"-"`
}

// Sink delivers events. Emit never blocks the caller; Close drains the
// queue and stops the delivery goroutine.
type Sink struct {
	cfg    config.EventSink
	logger hclog.Logger
	post   func(Event)

	queue   chan Event
	dropped uint64
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// NewSink builds a sink from configuration. When a webhook URL is set the
// sink posts every event there through the shared resty client; events go
// to the logger regardless.
func NewSink(cfg *config.Config, logger hclog.Logger) *Sink {
	s := &Sink{
		cfg:    cfg.EventSink,
		logger: logger,
		queue:  make(chan Event, cfg.EventSink.QueueSize),
	}

	if cfg.EventSink.WebhookURL != "" {
		client := httpclient.InitializeRestyClient(logger, cfg)
		url := cfg.EventSink.WebhookURL
		s.post = func(ev Event) {
			if _, err := client.R().SetBody(ev).Post(url); err != nil {
				logger.Warn("event webhook delivery failed", "kind", ev.Kind, "error", err)
			}
		}
	}

	s.wg.Add(1)
	go s.deliver()
	return s
}

// Emit queues one event. A full queue drops it and counts the drop; the
// scan path is never slowed down by event delivery.
func (s *Sink) Emit(kind Kind, message string, detail map[string]interface{}) {
	ev := Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: message,
		Time:    time.Now().UTC(),
		Detail:  detail,
	}

	select {
	case s.queue <- ev:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Sink) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Close drains pending events and stops delivery. Safe to call more than
// once.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}

func (s *Sink) deliver() {
	defer s.wg.Done()
	for ev := range s.queue {
		s.logger.Info("security event", "id", ev.ID, "kind", ev.Kind, "message", ev.Message)
		if len(ev.Detail) > 0 {
			args := []interface{}{"id", ev.ID}
			for k, v := range ev.Detail {
				args = append(args, k, v)
			}
			s.logger.Debug("security event detail", args...)
		}
		if s.post != nil {
			s.post(ev)
		}
	}
}
