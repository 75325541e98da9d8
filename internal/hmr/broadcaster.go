package hmr

import (
	"context"
	"sync"

	"github.com/malezjaa/palladin/internal/logging"
)

// DefaultBacklog is the per-subscriber message buffer. A subscriber
// that falls further behind loses its oldest messages first.
const DefaultBacklog = 100

// Subscriber receives live-reload messages until unsubscribed.
type Subscriber struct {
	ch chan Message
}

// Messages returns the subscriber's receive channel. It is closed when
// the subscriber is removed or the broadcaster shuts down.
func (s *Subscriber) Messages() <-chan Message {
	return s.ch
}

// Broadcaster fans live-reload messages out to websocket subscribers.
// Sends never block: a full subscriber buffer drops its oldest message
// to make room, so one stalled client cannot hold up the rest.
type Broadcaster struct {
	logger  logging.Logger
	backlog int

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
}

// NewBroadcaster creates a broadcaster with the default backlog.
func NewBroadcaster(logger logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Broadcaster{
		logger:      logger.WithComponent("hmr"),
		backlog:     DefaultBacklog,
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber and immediately queues the
// connected greeting for it. Returns nil after Close.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	sub := &Subscriber{ch: make(chan Message, b.backlog)}
	b.subscribers[sub] = struct{}{}
	sub.ch <- Connected()
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call more
// than once and after Close.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.ch)
}

// Broadcast queues msg for every current subscriber.
func (b *Broadcaster) Broadcast(ctx context.Context, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	dropped := 0
	for sub := range b.subscribers {
		for {
			select {
			case sub.ch <- msg:
			default:
				// Buffer full: shed the oldest queued message and retry.
				select {
				case <-sub.ch:
					dropped++
				default:
				}
				continue
			}
			break
		}
	}
	if dropped > 0 {
		b.logger.Warn(ctx, nil, "dropped messages for slow subscribers", "dropped", dropped)
	}
	b.logger.Debug(ctx, "broadcast", "type", string(msg.Type), "subscribers", len(b.subscribers))
}

// SubscriberCount reports the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close removes every subscriber and rejects future subscriptions.
// Idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}
