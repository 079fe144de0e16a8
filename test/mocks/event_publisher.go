package mocks

import (
	"sync"

	"vulnwatch/domain/events"
)

// RecordingPublisher implements events.Publisher and records published events
// in order for assertions.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) PublishProgress(event events.ProgressEvent) {
	p.record(event)
}

func (p *RecordingPublisher) PublishCompleted(event events.CompletedEvent) {
	p.record(event)
}

func (p *RecordingPublisher) PublishFailed(event events.FailedEvent) {
	p.record(event)
}

func (p *RecordingPublisher) record(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything published so far, in publish order.
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Last returns the most recently published event, or nil.
func (p *RecordingPublisher) Last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}
