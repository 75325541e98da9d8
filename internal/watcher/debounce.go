package watcher

import (
	"context"
	"sync"
	"time"
)

// Aggregator coalesces bursts of change events into batches. It is a
// level-triggered debounce: every new change refreshes the quiet
// timer, so a batch is only released once the stream actually pauses.
// MaxDelay caps how long an unbroken edit storm can postpone a flush.
type Aggregator struct {
	quiet    time.Duration
	maxDelay time.Duration
	tick     time.Duration

	events chan ChangeEvent
	output chan []ChangeEvent

	mu          sync.Mutex
	pending     map[string]ChangeEvent
	lastChange  time.Time
	firstChange time.Time
}

// NewAggregator creates an aggregator with the given quiet period and
// flush cap.
func NewAggregator(quiet, maxDelay time.Duration) *Aggregator {
	tick := quiet / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return &Aggregator{
		quiet:    quiet,
		maxDelay: maxDelay,
		tick:     tick,
		events:   make(chan ChangeEvent, 256),
		output:   make(chan []ChangeEvent, 8),
		pending:  make(map[string]ChangeEvent),
	}
}

// Add offers an accepted event to the aggregator. Never blocks: when
// the event channel is saturated the event is folded straight into the
// pending set, so no accepted change is ever lost.
func (a *Aggregator) Add(event ChangeEvent) {
	select {
	case a.events <- event:
	default:
		a.absorb(event)
	}
}

// Batches returns the channel coalesced batches are delivered on.
func (a *Aggregator) Batches() <-chan []ChangeEvent {
	return a.output
}

// Run drives the aggregator until ctx is cancelled. Events are absorbed
// as they arrive; a timer tick evaluates the quiet period.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.events:
			a.absorb(event)
		case <-ticker.C:
			if batch := a.drainIfQuiet(time.Now()); batch != nil {
				select {
				case a.output <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (a *Aggregator) absorb(event ChangeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if len(a.pending) == 0 {
		a.firstChange = now
	}

	// Deletion outranks a racing write for the same path.
	if existing, ok := a.pending[event.Path]; !ok || existing.Type != EventTypeDeleted {
		a.pending[event.Path] = event
	}
	a.lastChange = now
}

// drainIfQuiet releases the pending set once the quiet period has
// elapsed since the last change, or once the batch has been
// accumulating for maxDelay.
func (a *Aggregator) drainIfQuiet(now time.Time) []ChangeEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		return nil
	}

	quietFor := now.Sub(a.lastChange)
	accumulating := now.Sub(a.firstChange)
	if quietFor < a.quiet && accumulating < a.maxDelay {
		return nil
	}

	batch := make([]ChangeEvent, 0, len(a.pending))
	for _, event := range a.pending {
		batch = append(batch, event)
	}
	a.pending = make(map[string]ChangeEvent)

	return batch
}
