// Package notification delivers review domain events to committee-facing
// channels over Kafka. Delivery is decoupled from the request path: the
// service drops events into a buffered sink and a worker drains it, so a slow
// or absent broker never stalls a decision.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"bursary/internal/review/models"
)

const defaultSinkBuffer = 256

// ChannelSink is the in-process handoff between the review service and the
// notification worker. Publish never blocks; when the buffer is full the event
// is dropped and logged, which is acceptable because notifications are
// advisory and the ledger remains the source of truth.
type ChannelSink struct {
	ch     chan models.Event
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewChannelSink builds a sink. Pass a zero buffer to use the default.
func NewChannelSink(buffer int, logger *slog.Logger) *ChannelSink {
	if buffer <= 0 {
		buffer = defaultSinkBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelSink{ch: make(chan models.Event, buffer), logger: logger}
}

// Publish hands an event to the worker. Non-blocking.
func (s *ChannelSink) Publish(ctx context.Context, event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
		s.logger.WarnContext(ctx, "notification buffer full, dropping event",
			"event_type", string(event.Type),
			"application_id", event.ApplicationID.String(),
		)
	}
}

// Events exposes the drain side for the worker.
func (s *ChannelSink) Events() <-chan models.Event {
	return s.ch
}

// Close stops accepting events and lets the worker drain what remains.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
