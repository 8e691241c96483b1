package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"bracket/internal/broker"

	"github.com/stretchr/testify/assert"
)

type captureHandler struct {
	mu   sync.Mutex
	got  []broker.OrderUpdate
	seen chan struct{}
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{seen: make(chan struct{}, 16)}
}

func (h *captureHandler) HandleOrderUpdate(_ context.Context, upd broker.OrderUpdate) {
	h.mu.Lock()
	h.got = append(h.got, upd)
	h.mu.Unlock()
	h.seen <- struct{}{}
}

func (h *captureHandler) updates() []broker.OrderUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]broker.OrderUpdate(nil), h.got...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	handler := newCaptureHandler()
	d := New(handler, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	d.Ingest([]byte(`{"order_id":"A1","status":"OPEN"}`))
	d.Ingest([]byte(`not json at all`))
	d.Ingest([]byte(`{"order_id":"A1","status":"FILLED","filled_qty":10}`))

	for i := 0; i < 2; i++ {
		select {
		case <-handler.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not deliver in time")
		}
	}
	cancel()
	<-done

	got := handler.updates()
	assert.Equal(t, []broker.OrderUpdate{
		{OrderID: "A1", Status: broker.StatusOpen},
		{OrderID: "A1", Status: broker.StatusFilled, FilledQty: 10},
	}, got, "unparseable payloads are dropped, order is preserved")
}

func TestDispatcherIgnoresEmptyIngest(t *testing.T) {
	handler := newCaptureHandler()
	d := New(handler, 1)
	d.Ingest(nil)
	d.Ingest([]byte{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)
	assert.Empty(t, handler.updates())
}
