package notification

import (
	"context"
	"log/slog"

	"bursary/internal/review/models"
)

// EventPublisher is the downstream transport the worker delivers to.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.Event) error
}

// Worker drains the channel sink and hands events to the publisher. Publish
// failures are logged and the event is dropped; the ledger already holds the
// authoritative record.
type Worker struct {
	sink      *ChannelSink
	publisher EventPublisher
	logger    *slog.Logger
}

func NewWorker(sink *ChannelSink, publisher EventPublisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, publisher: publisher, logger: logger}
}

// Run delivers events until the context is cancelled or the sink is closed
// and drained.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event, ok := <-w.sink.Events():
			if !ok {
				return nil
			}
			w.deliver(ctx, event)
		}
	}
}

// drain publishes whatever is still buffered at shutdown, with a background
// context since the run context is already cancelled.
func (w *Worker) drain() {
	for {
		select {
		case event, ok := <-w.sink.Events():
			if !ok {
				return
			}
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event models.Event) {
	if err := w.publisher.PublishEvent(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "event delivery failed",
			"event_type", string(event.Type),
			"application_id", event.ApplicationID.String(),
			"error", err,
		)
	}
}
