package events

import (
	"errors"
	"sync"

	"vulnwatch/domain/events"
	"vulnwatch/logging"
)

// DefaultSubscriberBuffer bounds the per-observer delivery buffer. An
// observer whose buffer is full at publish time is shed instead of stalling
// the publisher.
const DefaultSubscriberBuffer = 16

// ErrBrokerClosed is returned by Subscribe after the broker shuts down.
var ErrBrokerClosed = errors.New("topic broker closed")

// SnapshotSource supplies the current-state catch-up event for an audit whose
// topic holds no retained event in this process (never seeded, or already
// collected after completion).
type SnapshotSource interface {
	Snapshot(auditID string) (events.Event, error)
}

// Subscription is one observer's attachment to an audit topic.
type Subscription struct {
	auditID    string
	observerID string
	ch         chan events.Event
	closeOnce  sync.Once
}

// Events returns the delivery channel. It is closed when the observer is
// unsubscribed, shed as a slow consumer, or the broker shuts down.
func (s *Subscription) Events() <-chan events.Event {
	return s.ch
}

// AuditID returns the topic this subscription is attached to.
func (s *Subscription) AuditID() string {
	return s.auditID
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// topic holds the membership of one audit's observers. last retains the most
// recent event so a late joiner gets a baseline without replaying history.
type topic struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	last     events.Event
	terminal bool
}

// TopicBroker fans audit events out to observers, one topic per audit ID.
// Ordering is preserved per topic: publishes for one audit are serialized and
// each observer sees them in publish order. Delivery to one observer never
// blocks or fails delivery to the others.
type TopicBroker struct {
	mu        sync.RWMutex
	topics    map[string]*topic
	snapshots SnapshotSource
	buffer    int
	closed    bool
	logger    *logging.Logger
}

// NewTopicBroker creates a broker with the given per-observer buffer size.
// Zero or negative means DefaultSubscriberBuffer.
func NewTopicBroker(buffer int) *TopicBroker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &TopicBroker{
		topics: make(map[string]*topic),
		buffer: buffer,
		logger: logging.Default().WithComponent("topic_broker"),
	}
}

// SetSnapshotSource wires the catch-up source. Set once during startup,
// before any Subscribe call.
func (b *TopicBroker) SetSnapshotSource(source SnapshotSource) {
	b.snapshots = source
}

// Subscribe attaches an observer to an audit's topic and synchronously
// delivers the audit's current snapshot before returning, so a late joiner
// never starts without a baseline. Subscribing the same observer ID twice is
// idempotent: the existing subscription is returned after the snapshot is
// re-delivered.
func (b *TopicBroker) Subscribe(auditID, observerID string) (*Subscription, error) {
	t, err := b.getOrCreateTopic(auditID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()

	snapshot := t.last
	if snapshot == nil {
		snapshot, err = b.fetchSnapshot(auditID)
		if err != nil {
			t.mu.Unlock()
			// Drop the topic this call just created: a failed subscribe for
			// an arbitrary caller-supplied ID must not grow the registry.
			b.maybeCollect(auditID)
			return nil, err
		}
		t.last = snapshot
		if isTerminalEvent(snapshot) {
			// A topic re-created for a finished audit stays eligible for
			// cleanup once its observers detach.
			t.terminal = true
		}
	}

	if existing, ok := t.subs[observerID]; ok {
		deliver(existing, snapshot)
		t.mu.Unlock()
		return existing, nil
	}

	sub := &Subscription{
		auditID:    auditID,
		observerID: observerID,
		ch:         make(chan events.Event, b.buffer),
	}
	t.subs[observerID] = sub
	deliver(sub, snapshot)
	observers := len(t.subs)
	t.mu.Unlock()

	b.logger.Broadcast("observer subscribed",
		"audit_id", auditID,
		"observer_id", observerID,
		"observers", observers)
	return sub, nil
}

func (b *TopicBroker) fetchSnapshot(auditID string) (events.Event, error) {
	if b.snapshots == nil {
		return nil, errors.New("no snapshot available for audit " + auditID)
	}
	return b.snapshots.Snapshot(auditID)
}

// isTerminalEvent reports whether an event reflects a finished audit.
func isTerminalEvent(event events.Event) bool {
	switch event.EventType() {
	case events.TypeCompleted, events.TypeFailed:
		return true
	default:
		return false
	}
}

// Unsubscribe detaches an observer. Idempotent: detaching twice, or after the
// topic is gone, is a no-op.
func (b *TopicBroker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.RLock()
	t, ok := b.topics[sub.auditID]
	b.mu.RUnlock()
	if !ok {
		sub.close()
		return
	}

	t.mu.Lock()
	if current, attached := t.subs[sub.observerID]; attached && current == sub {
		delete(t.subs, sub.observerID)
	}
	t.mu.Unlock()
	sub.close()

	b.maybeCollect(sub.auditID)
	b.logger.Broadcast("observer unsubscribed",
		"audit_id", sub.auditID,
		"observer_id", sub.observerID)
}

// PublishProgress delivers a stage-change event to the audit's observers.
func (b *TopicBroker) PublishProgress(event events.ProgressEvent) {
	b.publish(event.AuditID, event, false)
}

// PublishCompleted delivers a completion event and marks the topic eligible
// for cleanup once its last observer detaches. The topic is not forcibly
// closed: attached observers keep their subscriptions, and a late reconnect
// still gets a completed snapshot through Subscribe.
func (b *TopicBroker) PublishCompleted(event events.CompletedEvent) {
	b.publish(event.AuditID, event, true)
}

// PublishFailed delivers a failure event and marks the topic for cleanup.
func (b *TopicBroker) PublishFailed(event events.FailedEvent) {
	b.publish(event.AuditID, event, true)
}

// Close shuts the broker down, closing every subscriber channel.
func (b *TopicBroker) Close() {
	b.mu.Lock()
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		for _, sub := range t.subs {
			sub.close()
		}
		t.subs = make(map[string]*Subscription)
		t.mu.Unlock()
	}
	b.logger.Broadcast("broker closed", "topics", len(topics))
}

func (b *TopicBroker) publish(auditID string, event events.Event, terminal bool) {
	t, err := b.getOrCreateTopic(auditID)
	if err != nil {
		return
	}

	t.mu.Lock()
	t.last = event
	if terminal {
		t.terminal = true
	}

	var shed []string
	for observerID, sub := range t.subs {
		if !deliver(sub, event) {
			// Buffer full or channel unusable: shed the slow consumer
			// rather than stalling the publisher.
			shed = append(shed, observerID)
		}
	}
	for _, observerID := range shed {
		sub := t.subs[observerID]
		delete(t.subs, observerID)
		sub.close()
		b.logger.Warn("dropped slow observer",
			"audit_id", auditID,
			"observer_id", observerID)
	}
	t.mu.Unlock()

	if terminal {
		b.maybeCollect(auditID)
	}
}

// deliver attempts a non-blocking send. Returns false when the observer's
// buffer is full. A send on a channel the observer abandoned is still just a
// buffered write; the next full buffer sheds it.
func deliver(sub *Subscription, event events.Event) bool {
	select {
	case sub.ch <- event:
		return true
	default:
		return false
	}
}

func (b *TopicBroker) getOrCreateTopic(auditID string) (*topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	t, ok := b.topics[auditID]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription)}
		b.topics[auditID] = t
	}
	return t, nil
}

// maybeCollect removes a topic once it is empty and either terminal or never
// seeded with an event. A later Subscribe transparently re-creates it via the
// snapshot source.
func (b *TopicBroker) maybeCollect(auditID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[auditID]
	if !ok {
		return
	}
	t.mu.Lock()
	collect := len(t.subs) == 0 && (t.terminal || t.last == nil)
	t.mu.Unlock()
	if collect {
		delete(b.topics, auditID)
	}
}
