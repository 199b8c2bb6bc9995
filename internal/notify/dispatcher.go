package notify

import (
	"context"
	"sync"
	"time"

	"autospa/internal/domain"
	applog "autospa/internal/log"
)

const defaultQueueSize = 256

type job struct {
	kind   string
	order  domain.Order
	status domain.OrderStatus
}

// Dispatcher queues order notifications and sends them from a background
// worker. Each send is bounded by a timeout; failures are logged and dropped.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(n Notifier, timeout time.Duration, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{notifier: n, timeout: timeout, queue: make(chan job, queueSize)}
	d.wg.Add(1)
	go d.run()
	return d
}

// OrderPlaced enqueues the confirmation email. It never blocks.
func (d *Dispatcher) OrderPlaced(o domain.Order) {
	d.enqueue(job{kind: "order_confirmation", order: o})
}

// StatusChanged enqueues the status-update email. It never blocks.
func (d *Dispatcher) StatusChanged(o domain.Order, status domain.OrderStatus) {
	d.enqueue(job{kind: "status_update", order: o, status: status})
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		applog.Warn(nil, "notify.dropped", nil, map[string]any{"kind": j.kind, "order": j.order.Number, "reason": "closed"})
		return
	}
	select {
	case d.queue <- j:
	default:
		applog.Warn(nil, "notify.dropped", nil, map[string]any{"kind": j.kind, "order": j.order.Number, "reason": "queue full"})
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			applog.Error(nil, "notify.panic", nil, map[string]any{"kind": j.kind, "order": j.order.Number, "panic": r})
		}
	}()

	var err error
	switch j.kind {
	case "order_confirmation":
		err = d.notifier.SendOrderConfirmation(ctx, j.order.CustomerEmail, j.order)
	case "status_update":
		err = d.notifier.SendStatusUpdate(ctx, j.order.CustomerEmail, j.order, j.status)
	}
	fields := map[string]any{"kind": j.kind, "order": j.order.Number}
	if err != nil {
		applog.Error(nil, "notify.failed", err, fields)
		return
	}
	applog.Info(nil, "notify.sent", fields)
}

// Close stops accepting work and waits for queued messages to be sent or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
