package dcbtest

import (
	"context"
	"fmt"

	"pgregory.net/rapid"

	"go-dcb/pkg/dcb"
)

// RunRapid property-tests append determinism (property 1) and round-trip
// (property 2) against randomly generated batches, complementing the fixed
// cases in Run with a much wider input space. Call it from a *testing.T via
// rapid.MakeControlled/rapid.Check at the call site in each backend's test
// package.
func RunRapid(t *rapid.T, newStore func(*rapid.T) dcb.Store) {
	store := newStore(t)
	tenant := mustRapidTenant(t)
	eventType := mustRapidType(t)
	tag := mustRapidTag(t)

	batchSize := rapid.IntRange(1, 20).Draw(t, "batchSize")
	events := make([]dcb.EventToPersist, batchSize)
	for i := range events {
		payload := []byte(fmt.Sprintf(`{"n":%d}`, i))
		e, err := dcb.NewEventToPersist(eventType, []dcb.EventTag{tag}, payload)
		if err != nil {
			t.Fatalf("NewEventToPersist: %v", err)
		}
		events[i] = e
	}

	envelopes, err := store.Append(context.Background(), tenant, events)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(envelopes) != len(events) {
		t.Fatalf("got %d envelopes, want %d", len(envelopes), len(events))
	}

	var lastPos int64 = -1
	for i, env := range envelopes {
		if env.ID != events[i].ID {
			t.Fatalf("envelope %d id = %s, want %s", i, env.ID, events[i].ID)
		}
		pos, ok := env.Position()
		if !ok {
			t.Fatalf("envelope %d missing _position", i)
		}
		if pos <= lastPos {
			t.Fatalf("position %d did not strictly increase from %d", pos, lastPos)
		}
		lastPos = pos
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("round-trip stream returned %d events, want %d", len(got), len(events))
	}
	for i, e := range events {
		if got[i].ID != e.ID {
			t.Fatalf("round-trip event %d id = %s, want %s", i, got[i].ID, e.ID)
		}
	}
}

func mustRapidTenant(t *rapid.T) dcb.Tenant {
	id := rapid.StringMatching(`[a-z][a-z0-9-]{2,15}`).Draw(t, "tenant")
	tenant, err := dcb.NewTenant(id)
	if err != nil {
		t.Fatalf("NewTenant(%q): %v", id, err)
	}
	return tenant
}

func mustRapidType(t *rapid.T) dcb.EventType {
	s := rapid.StringMatching(`[a-z][a-z-]{2,15}`).Draw(t, "eventType")
	et, err := dcb.NewEventType(s)
	if err != nil {
		t.Fatalf("NewEventType(%q): %v", s, err)
	}
	return et
}

func mustRapidTag(t *rapid.T) dcb.EventTag {
	concept := rapid.StringMatching(`[A-Za-z][A-Za-z0-9_-]{2,10}`).Draw(t, "tagConcept")
	id := rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9_-]{0,10}`).Draw(t, "tagID")
	tag, err := dcb.NewEventTag(concept, id)
	if err != nil {
		t.Fatalf("NewEventTag(%q, %q): %v", concept, id, err)
	}
	return tag
}
