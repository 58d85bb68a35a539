package events

import (
	"sync"

	"r2s/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
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

// Payload is implemented by events that can render themselves as a
// types.Event for persistence and streaming.
type Payload interface {
	Event() *types.Event
}

// ToTypes converts an emitted event into its canonical types.Event form.
func ToTypes(evt Event) *types.Event {
	switch e := evt.(type) {
	case nil:
		return nil
	case *types.Event:
		return e.Clone()
	case Payload:
		return e.Event().Clone()
	default:
		return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
}

// Buffer collects emitted events in order. The node attaches a buffer per
// transaction and only forwards its contents once the transaction succeeded.
type Buffer struct {
	mu     sync.Mutex
	events []types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	converted := ToTypes(evt)
	if converted == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, *converted)
	b.mu.Unlock()
}

// Events returns a copy of the buffered events.
func (b *Buffer) Events() []types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Reset discards all buffered events.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Filter returns the buffered events whose type equals eventType.
func (b *Buffer) Filter(eventType string) []types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.Event
	for _, evt := range b.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}
