package events

import (
	"testing"

	"r2s/core/types"
)

type namedEvent string

func (n namedEvent) EventType() string { return string(n) }

func TestBufferCollectsInOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(&types.Event{Type: "a", Attributes: map[string]string{"k": "v"}})
	buf.Emit(namedEvent("b"))
	buf.Emit(nil)

	got := buf.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != "a" || got[0].Attributes["k"] != "v" {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[1].Type != "b" {
		t.Fatalf("unexpected second event %+v", got[1])
	}
	if len(buf.Filter("b")) != 1 {
		t.Fatalf("expected filter to find one event")
	}
	buf.Reset()
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer after reset")
	}
}

func TestBufferCopiesAttributes(t *testing.T) {
	var buf Buffer
	evt := &types.Event{Type: "x", Attributes: map[string]string{"k": "v"}}
	buf.Emit(evt)
	evt.Attributes["k"] = "changed"
	if buf.Events()[0].Attributes["k"] != "v" {
		t.Fatalf("buffer aliased emitter attributes")
	}
}
