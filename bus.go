package spotmicro

import (
	"sync"
	"time"
)

// MaxSubs is the bound on simultaneous bus subscriptions, matching the
// source's std::array<std::optional<Sub>, MaxSubs> subscriber table.
const MaxSubs = 16

// BatchMax is the maximum number of items buffered per subscriber in
// Batch mode before the oldest-wins drop policy applies (§4.3).
const BatchMax = 16

// queueDepth bounds the bus's single FIFO feeding the dedicated worker.
const queueDepth = 256

// EmitMode selects how a subscriber's deliveries are shaped between
// interval expirations. There is no timer: a delivery happens only while
// dispatching a publish on the subscriber's topic that arrives once the
// interval has elapsed, so buffered items wait for the next such publish.
type EmitMode int

const (
	// Latest overwrites the subscriber's single-slot buffer while the
	// interval runs; the first publish after it elapses replaces the slot
	// and delivers that one item.
	Latest EmitMode = iota
	// Batch appends to a bounded array (at most BatchMax items) while the
	// interval runs; the first publish after it elapses is appended if
	// there is room, then the whole array is delivered and cleared.
	Batch
)

type queueItem struct {
	topic   Topic
	payload any
	exclude int
}

const noExclude = -1

type subscriberSlot struct {
	topic    Topic
	interval time.Duration
	last     time.Time
	mode     EmitMode
	deliver  func([]any)
	buf      []any
}

// Handle identifies a live subscription. Dropping it (calling
// Unsubscribe) removes the slot; per §5's RAII-style contract, unsubscribe
// from within a callback is legal and takes effect at the next dispatch
// since the worker snapshots ready subscribers under the mutex before
// invoking callbacks outside it.
type Handle struct {
	bus *EventBus
	idx int
}

// Valid reports whether the handle still names a live slot.
func (h Handle) Valid() bool { return h.bus != nil && h.idx >= 0 }

// Unsubscribe releases the slot. Safe to call multiple times.
func (h *Handle) Unsubscribe() {
	if !h.Valid() {
		return
	}
	h.bus.unsubscribe(h.idx)
	h.idx = -1
}

// EventBus is the shared spine connecting the motion engine, sensor
// drivers and network adapters: a bounded FIFO of {topic, payload,
// exclude} items feeding one dedicated worker that dispatches to
// subscriber slots in slot order, grounded on the source's
// EventBus<Msg>/FreeRTOS-task worker and, for the idiomatic Go surface
// (Subscribe returning a cleanup handle, PublishAsync returning a
// dropped bool, atomic-style subscriber bookkeeping), on
// thushan-olla/pkg/eventbus. Subscriber storage stays a fixed-size array
// rather than that package's dynamic map, since §3 requires a bound.
type EventBus struct {
	mu   sync.Mutex
	subs [MaxSubs]*subscriberSlot

	queue chan queueItem
	done  chan struct{}

	latestMu sync.RWMutex
	latest   map[Topic]any

	onDropped func(topic Topic)
}

// NewEventBus constructs a bus and starts its dedicated dispatch worker.
func NewEventBus() *EventBus {
	b := &EventBus{
		queue:  make(chan queueItem, queueDepth),
		done:   make(chan struct{}),
		latest: make(map[Topic]any),
	}
	go b.worker()
	return b
}

// Close stops the dispatch worker. Pending queued items are dropped.
func (b *EventBus) Close() { close(b.done) }

func (b *EventBus) worker() {
	for {
		select {
		case <-b.done:
			return
		case item := <-b.queue:
			b.dispatch(item)
		}
	}
}

// dispatch mirrors the source's EventBus::dispatch: under the mutex it
// decides which slots are "ready" (interval elapsed) versus which get
// the message buffered, then invokes the ready callbacks outside the
// lock so a slow subscriber never blocks subscription-table mutation.
func (b *EventBus) dispatch(item queueItem) {
	now := time.Now()
	type ready struct {
		deliver func([]any)
		items   []any
	}
	var readyList []ready

	b.mu.Lock()
	for i, s := range b.subs {
		if s == nil || i == item.exclude || s.topic != item.topic {
			continue
		}
		if s.interval > 0 && now.Sub(s.last) < s.interval {
			switch s.mode {
			case Batch:
				if len(s.buf) < BatchMax {
					s.buf = append(s.buf, item.payload)
				}
				// else: drop the newest, keep oldest history (§4.3 drop policy).
			case Latest:
				s.buf = []any{item.payload}
			}
			continue
		}
		switch {
		case s.mode == Latest:
			s.buf = []any{item.payload}
		case len(s.buf) < BatchMax:
			s.buf = append(s.buf, item.payload)
		}
		s.last = now
		readyList = append(readyList, ready{deliver: s.deliver, items: s.buf})
		s.buf = nil
	}
	b.mu.Unlock()

	for _, r := range readyList {
		r.deliver(r.items)
	}
}

// subscribe installs a type-erased delivery closure. Subscribe[T] builds
// deliver via a single generic type assertion per delivery, never
// reflection, matching §9's "no runtime type reflection" rule.
func (b *EventBus) subscribe(topic Topic, intervalMs uint32, mode EmitMode, deliver func([]any)) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == nil {
			b.subs[i] = &subscriberSlot{
				topic:    topic,
				interval: time.Duration(intervalMs) * time.Millisecond,
				last:     time.Now(),
				mode:     mode,
				deliver:  deliver,
			}
			return Handle{bus: b, idx: i}
		}
	}
	return Handle{bus: nil, idx: -1} // SubscriptionExhausted: invalid handle
}

func (b *EventBus) unsubscribe(idx int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx >= 0 && idx < MaxSubs {
		b.subs[idx] = nil
	}
}

// Subscribe registers cb for topic with the given shaping. A zero
// intervalMs means immediate delivery. The returned Handle is invalid
// (Valid() == false) when the bus has no free slot
// (SubscriptionExhausted); callers treat that as "no subscribers".
func Subscribe[T any](b *EventBus, topic Topic, intervalMs uint32, mode EmitMode, cb func([]T)) Handle {
	deliver := func(items []any) {
		ts := make([]T, len(items))
		for i, it := range items {
			ts[i] = it.(T)
		}
		cb(ts)
	}
	return b.subscribe(topic, intervalMs, mode, deliver)
}

func (b *EventBus) storeLatest(topic Topic, msg any) {
	b.latestMu.Lock()
	b.latest[topic] = msg
	b.latestMu.Unlock()
}

// Peek returns the last published value for topic without consuming it,
// for the motion task's IMU snapshot (§5). It takes only the read side of
// the latest-value lock, never the subscription mutex.
func Peek[T any](b *EventBus, topic Topic) (T, bool) {
	var zero T
	b.latestMu.RLock()
	v, ok := b.latest[topic]
	b.latestMu.RUnlock()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Publish blocks until the item is enqueued, admitting backpressure per
// §4.3's sync-publish contract. exclude is the publisher's own handle, or
// Handle{} to exclude nothing.
func (b *EventBus) Publish(topic Topic, msg any, exclude Handle) {
	b.storeLatest(topic, msg)
	b.queue <- queueItem{topic: topic, payload: msg, exclude: excludeIdx(exclude)}
}

// PublishAsync enqueues without blocking, dropping and returning false on
// a full queue. Telemetry publishers (the motion engine) must use this,
// never Publish, per §4.6's "never blocks" rule.
func (b *EventBus) PublishAsync(topic Topic, msg any, exclude Handle) bool {
	b.storeLatest(topic, msg)
	select {
	case b.queue <- queueItem{topic: topic, payload: msg, exclude: excludeIdx(exclude)}:
		return true
	default:
		return false
	}
}

func excludeIdx(h Handle) int {
	if !h.Valid() {
		return noExclude
	}
	return h.idx
}

// HasSubscribers reports whether any live slot is subscribed to topic.
func (b *EventBus) HasSubscribers(topic Topic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s != nil && s.topic == topic {
			return true
		}
	}
	return false
}
