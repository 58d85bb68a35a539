package types

import "sort"

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType satisfies core/events.Event.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}

// EventAttribute is a single key/value pair of an encoded event.
type EventAttribute struct {
	Key   string
	Value string
}

// StoredEvent is the RLP-friendly form of an Event kept in the event journal.
// Attributes are sorted by key so the encoding is deterministic.
type StoredEvent struct {
	Sequence   uint64
	TxHash     []byte
	Type       string
	Attributes []EventAttribute
}

// NewStoredEvent converts an event into its journal representation.
func NewStoredEvent(seq uint64, txHash []byte, evt *Event) *StoredEvent {
	stored := &StoredEvent{Sequence: seq, TxHash: append([]byte(nil), txHash...)}
	if evt == nil {
		return stored
	}
	stored.Type = evt.Type
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	stored.Attributes = make([]EventAttribute, 0, len(keys))
	for _, k := range keys {
		stored.Attributes = append(stored.Attributes, EventAttribute{Key: k, Value: evt.Attributes[k]})
	}
	return stored
}

// Event converts the journal representation back into an Event.
func (s *StoredEvent) Event() *Event {
	if s == nil {
		return nil
	}
	attrs := make(map[string]string, len(s.Attributes))
	for _, attr := range s.Attributes {
		attrs[attr.Key] = attr.Value
	}
	return &Event{Type: s.Type, Attributes: attrs}
}
