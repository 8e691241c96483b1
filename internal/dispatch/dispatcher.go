package dispatch

import (
	"context"

	"bracket/internal/broker"
	"bracket/internal/logger"
)

// Handler is the orchestrator-side sink for normalized updates.
type Handler interface {
	HandleOrderUpdate(ctx context.Context, upd broker.OrderUpdate)
}

// Dispatcher queues raw broker pushes and delivers the normalized events
// to the handler from a single worker goroutine. Delivery is at least
// once: the handler is idempotent by contract, and Ingest blocks rather
// than drop when the queue is full. Per-order event ordering is preserved
// because there is one worker.
type Dispatcher struct {
	handler Handler
	queue   chan []byte
}

const defaultQueueSize = 256

func New(handler Handler, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		handler: handler,
		queue:   make(chan []byte, queueSize),
	}
}

// Ingest accepts one raw broker payload from a webhook or websocket
// thread. Safe for concurrent use.
func (d *Dispatcher) Ingest(raw []byte) {
	if len(raw) == 0 {
		return
	}
	d.queue <- append([]byte(nil), raw...)
}

// Run consumes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-d.queue:
			upd, ok := Normalize(raw)
			if !ok {
				logger.Debugf("dispatch: dropping unrecognizable payload (%d bytes)", len(raw))
				continue
			}
			d.handler.HandleOrderUpdate(ctx, upd)
		}
	}
}
