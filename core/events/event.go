package events

import "crowdfund/core/types"

// Event represents a structured state change emitted by a campaign operation.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render their canonical
// attribute map for persistence and RPC consumers.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events in emission order until they are drained. The
// executor uses it to hold back records of an operation until it commits.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []Event {
	if b == nil {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}

// Reset discards any buffered events.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = nil
	}
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.events)
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Envelope adapts a raw payload to the Payload interface.
type Envelope struct {
	Evt *types.Event
}

// EventType implements Event.
func (e Envelope) EventType() string {
	if e.Evt == nil {
		return ""
	}
	return e.Evt.Type
}

// Event implements Payload.
func (e Envelope) Event() *types.Event { return e.Evt }

// Render returns the canonical payload for evt, or nil when the event does not
// carry one.
func Render(evt Event) *types.Event {
	if p, ok := evt.(Payload); ok {
		return p.Event()
	}
	return nil
}
