package swap

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// defaultQueueCap bounds the undelivered event queue. When a slow consumer
// lets the queue fill up, progress events are dropped; terminal and
// retry_scheduled events always get through.
const defaultQueueCap = 1024

// ProgressBus carries lifecycle events from the runners to a single
// consumer. Publishing never blocks a runner: events queue in memory up to a
// cap and a slow consumer only delays rendering, not execution. Repeated
// retry_scheduled events for the same wallet and attempt are coalesced;
// terminal and retry events are never dropped.
type ProgressBus struct {
	mu       sync.Mutex
	queue    []Event
	capacity int
	notify   chan struct{}
	closed   bool

	lastRetry map[int]int // wallet index -> last queued retry attempt
	coalesced int
	dropped   int

	logger *zap.Logger
}

// NewProgressBus creates an empty bus.
func NewProgressBus(logger *zap.Logger) *ProgressBus {
	return &ProgressBus{
		capacity:  defaultQueueCap,
		notify:    make(chan struct{}, 1),
		lastRetry: make(map[int]int),
		logger:    logger.Named("progress"),
	}
}

// Publish queues an event. Safe for concurrent use by many runners.
func (b *ProgressBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.logger.Warn("event published after close, dropping",
			zap.String("type", string(ev.Type)),
			zap.Int("wallet", ev.WalletIndex))
		return
	}

	if ev.Type == EventRetryScheduled {
		if last, ok := b.lastRetry[ev.WalletIndex]; ok && last == ev.Attempt {
			b.coalesced++
			b.wake()
			return
		}
		b.lastRetry[ev.WalletIndex] = ev.Attempt
	}

	// A full queue sheds progress events only; terminal and retry events
	// may overshoot the cap so no receipt is ever lost.
	if len(b.queue) >= b.capacity && !ev.Terminal() && ev.Type != EventRetryScheduled {
		b.dropped++
		return
	}

	b.queue = append(b.queue, ev)
	b.wake()
}

func (b *ProgressBus) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, the bus is closed and drained,
// or ctx is done. The second return value is false once no more events will
// arrive.
func (b *ProgressBus) Next(ctx context.Context) (Event, bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev, true
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return Event{}, false
		}

		select {
		case <-b.notify:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// Close stops intake. Queued events remain readable; every event published
// by a terminated runner before Close is delivered before Next reports
// exhaustion.
func (b *ProgressBus) Close() {
	b.mu.Lock()
	b.closed = true
	if b.coalesced > 0 {
		b.logger.Debug("coalesced duplicate retry events", zap.Int("count", b.coalesced))
	}
	if b.dropped > 0 {
		b.logger.Warn("dropped progress events on a saturated queue", zap.Int("count", b.dropped))
	}
	b.mu.Unlock()
	b.wake()
}

// Pending returns the number of undelivered events.
func (b *ProgressBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
