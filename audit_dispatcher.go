package pairAuth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDropOther collects drops of event types the engine does not emit itself.
const auditDropOther = "other"

// isRequestPathEvent reports whether eventType is emitted from Authenticate. Those events
// are offered to the queue without waiting, whatever AuditConfig.DropIfFull says.
func isRequestPathEvent(eventType string) bool {
	switch eventType {
	case auditEventAuthenticated, auditEventRotated, auditEventRejected:
		return true
	}
	return false
}

// auditDispatcher hands events to the sink on a single worker goroutine. It is the only
// goroutine an Engine owns and exists only when AuditConfig.Enabled is set.
//
// Account events wait for room when waitForRoom is set; they already pay for a store
// round trip. Authenticate events never wait.
type auditDispatcher struct {
	sink        AuditSink
	waitForRoom bool

	mu     sync.RWMutex
	queue  chan AuditEvent
	closed bool
	exited chan struct{}

	// drops is filled once in newAuditDispatcher and only read afterwards.
	drops map[string]*atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:        sink,
		waitForRoom: !cfg.DropIfFull,
		queue:       make(chan AuditEvent, max(cfg.BufferSize, 1)),
		exited:      make(chan struct{}),
		drops:       make(map[string]*atomic.Uint64, len(auditEventTypes)+1),
	}
	for _, eventType := range auditEventTypes {
		d.drops[eventType] = new(atomic.Uint64)
	}
	d.drops[auditDropOther] = new(atomic.Uint64)

	go d.loop()
	return d
}

// loop ends once Close has closed the queue and every accepted event reached the sink.
func (d *auditDispatcher) loop() {
	defer close(d.exited)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. A request-path event, or any event under DropIfFull, is dropped when
// the queue is full. Other events wait for room or ctx; giving up on ctx counts as a drop.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.waitForRoom && !isRequestPathEvent(event.EventType) {
		select {
		case d.queue <- event:
		case <-ctx.Done():
			d.countDrop(event.EventType)
		}
		return
	}

	select {
	case d.queue <- event:
	default:
		d.countDrop(event.EventType)
	}
}

func (d *auditDispatcher) countDrop(eventType string) {
	counter, ok := d.drops[eventType]
	if !ok {
		counter = d.drops[auditDropOther]
	}
	counter.Add(1)
}

// Close stops accepting events and returns after the worker delivered everything already
// queued. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.exited
}

// Dropped is the total across event types.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for _, counter := range d.drops {
		total += counter.Load()
	}
	return total
}

// DroppedByType returns the non-zero drop counts keyed by event type.
func (d *auditDispatcher) DroppedByType() map[string]uint64 {
	out := make(map[string]uint64)
	if d == nil {
		return out
	}
	for eventType, counter := range d.drops {
		if n := counter.Load(); n > 0 {
			out[eventType] = n
		}
	}
	return out
}
