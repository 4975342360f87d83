// Package dcbtest is a shared conformance suite run against every dcb.Store
// backend. It exercises the quantified properties and concrete scenarios
// that every backend must satisfy identically, so the in-memory and
// relational stores are tested against one shared contract rather than two
// diverging ad hoc suites.
package dcbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"go-dcb/pkg/dcb"
)

// Factory builds a fresh, empty Store for a single test. Suites that share
// state across subtests (e.g. a single database) must return a Store scoped
// so that different tenants do not interfere, since Run uses a distinct
// tenant per scenario precisely to allow that sharing.
type Factory func(t *testing.T) dcb.Store

// Run executes the full conformance suite against the store produced by
// newStore. Call it from both the in-memory and relational backend test
// packages with a Factory for that backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("properties", func(t *testing.T) {
		t.Run("AppendDeterminism", func(t *testing.T) { testAppendDeterminism(t, newStore) })
		t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore) })
		t.Run("TenantIsolation", func(t *testing.T) { testTenantIsolation(t, newStore) })
		t.Run("EmptyQueryMatchesNothing", func(t *testing.T) { testEmptyQueryMatchesNothing(t, newStore) })
		t.Run("DuplicateID", func(t *testing.T) { testDuplicateID(t, newStore) })
		t.Run("DCBNoConflict", func(t *testing.T) { testDCBNoConflict(t, newStore) })
		t.Run("DCBConflict", func(t *testing.T) { testDCBConflict(t, newStore) })
		t.Run("DCBExpectNone", func(t *testing.T) { testDCBExpectNone(t, newStore) })
		t.Run("RequireAllTags", func(t *testing.T) { testRequireAllTags(t, newStore) })
		t.Run("MaxCount", func(t *testing.T) { testMaxCount(t, newStore) })
		t.Run("MetadataPreservation", func(t *testing.T) { testMetadataPreservation(t, newStore) })
		t.Run("Concurrency", func(t *testing.T) { testConcurrency(t, newStore) })
	})

	t.Run("scenarios", func(t *testing.T) {
		t.Run("S1_SingleAppendAndStream", func(t *testing.T) { testS1(t, newStore) })
		t.Run("S2_BatchAppendPreservesOrder", func(t *testing.T) { testS2(t, newStore) })
		t.Run("S3_DuplicateIDRejected", func(t *testing.T) { testS3(t, newStore) })
		t.Run("S4_BoundarySucceeds", func(t *testing.T) { testS4(t, newStore) })
		t.Run("S5_BoundaryConflicts", func(t *testing.T) { testS5(t, newStore) })
		t.Run("S6_MaxCountTruncates", func(t *testing.T) { testS6(t, newStore) })
	})
}

// --- helpers ---

func mustTenant(t *testing.T, id string) dcb.Tenant {
	t.Helper()
	tenant, err := dcb.NewTenant(id)
	if err != nil {
		t.Fatalf("NewTenant(%q): %v", id, err)
	}
	return tenant
}

func mustType(t *testing.T, s string) dcb.EventType {
	t.Helper()
	et, err := dcb.NewEventType(s)
	if err != nil {
		t.Fatalf("NewEventType(%q): %v", s, err)
	}
	return et
}

func mustTag(t *testing.T, concept, id string) dcb.EventTag {
	t.Helper()
	tag, err := dcb.NewEventTag(concept, id)
	if err != nil {
		t.Fatalf("NewEventTag(%q, %q): %v", concept, id, err)
	}
	return tag
}

func mustEvent(t *testing.T, eventType dcb.EventType, tags []dcb.EventTag, payload any) dcb.EventToPersist {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	e, err := dcb.NewEventToPersist(eventType, tags, raw)
	if err != nil {
		t.Fatalf("NewEventToPersist: %v", err)
	}
	return e
}

func positions(t *testing.T, envelopes []dcb.EventEnvelope) []int64 {
	t.Helper()
	out := make([]int64, len(envelopes))
	for i, e := range envelopes {
		pos, ok := e.Position()
		if !ok {
			t.Fatalf("envelope %d has no _position metadata", i)
		}
		out[i] = pos
	}
	return out
}

func ids(envelopes []dcb.EventEnvelope) []string {
	out := make([]string, len(envelopes))
	for i, e := range envelopes {
		out[i] = e.ID.String()
	}
	return out
}

// --- quantified properties ---

func testAppendDeterminism(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "append-determinism")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "1")

	events := []dcb.EventToPersist{
		mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "1"}),
		mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "2"}),
		mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "3"}),
	}

	envelopes, err := store.Append(context.Background(), tenant, events)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(envelopes) != len(events) {
		t.Fatalf("got %d envelopes, want %d", len(envelopes), len(events))
	}
	for i, e := range events {
		if envelopes[i].ID != e.ID {
			t.Errorf("envelope %d id = %s, want %s", i, envelopes[i].ID, e.ID)
		}
	}

	pos := positions(t, envelopes)
	for i := 1; i < len(pos); i++ {
		if pos[i] <= pos[i-1] {
			t.Errorf("positions not strictly increasing: %v", pos)
		}
	}
	seen := make(map[int64]struct{}, len(pos))
	for _, p := range pos {
		if _, dup := seen[p]; dup {
			t.Errorf("duplicate position %d", p)
		}
		seen[p] = struct{}{}
	}
}

func testRoundTrip(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "round-trip")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "1")

	events := []dcb.EventToPersist{
		mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "1"}),
		mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "2"}),
	}
	if _, err := store.Append(context.Background(), tenant, events); err != nil {
		t.Fatalf("Append: %v", err)
	}

	query := dcb.NewStreamQuery().WithTags(tag)
	got, err := store.Stream(context.Background(), tenant, query)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d envelopes, want %d", len(got), len(events))
	}
	for i, e := range events {
		if got[i].ID != e.ID {
			t.Errorf("envelope %d id = %s, want %s", i, got[i].ID, e.ID)
		}
	}
}

func testTenantIsolation(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenantA := mustTenant(t, "tenant-a")
	tenantB := mustTenant(t, "tenant-b")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "1")

	eventA := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"owner": "a"})
	if _, err := store.Append(context.Background(), tenantA, []dcb.EventToPersist{eventA}); err != nil {
		t.Fatalf("Append tenantA: %v", err)
	}

	query := dcb.NewStreamQuery().WithTags(tag)
	got, err := store.Stream(context.Background(), tenantB, query)
	if err != nil {
		t.Fatalf("Stream tenantB: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("tenantB stream returned %d events, want 0", len(got))
	}
}

func testEmptyQueryMatchesNothing(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "empty-query")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "1")
	event := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{event}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty query returned %d events, want 0", len(got))
	}
}

func testDuplicateID(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "duplicate-id")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "1")
	event := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})

	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{event}); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{event})
	if !dcb.IsDuplicateIDError(err) {
		t.Fatalf("second Append error = %v, want DuplicateIDError", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("stream returned %d events, want 1", len(got))
	}
}

func testDCBNoConflict(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "dcb-no-conflict")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "123")

	e1 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	envs, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1})
	if err != nil {
		t.Fatalf("Append e1: %v", err)
	}
	e1ID := envs[0].ID.String()

	e2 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	boundary := dcb.NewStreamQuery().WithTags(tag)
	_, err = store.Append(context.Background(), tenant, []dcb.EventToPersist{e2},
		dcb.WithConsistencyBoundary(boundary), dcb.WithExpectedLastEventID(e1ID))
	if err != nil {
		t.Fatalf("Append e2 with boundary: %v", err)
	}
}

func testDCBConflict(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "dcb-conflict")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "123")

	e1 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	envs, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1})
	if err != nil {
		t.Fatalf("Append e1: %v", err)
	}
	e1ID := envs[0].ID.String()

	e2 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e2}); err != nil {
		t.Fatalf("Append e2: %v", err)
	}

	e3 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	boundary := dcb.NewStreamQuery().WithTags(tag)
	_, err = store.Append(context.Background(), tenant, []dcb.EventToPersist{e3},
		dcb.WithConsistencyBoundary(boundary), dcb.WithExpectedLastEventID(e1ID))
	if !dcb.IsConcurrencyError(err) {
		t.Fatalf("Append e3 error = %v, want ConcurrencyError", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("stream returned %d events, want 2", len(got))
	}
}

func testDCBExpectNone(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "dcb-expect-none")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "123")

	e1 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1}); err != nil {
		t.Fatalf("Append e1: %v", err)
	}

	e2 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	boundary := dcb.NewStreamQuery().WithTags(tag)
	_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e2},
		dcb.WithConsistencyBoundary(boundary))
	if !dcb.IsConcurrencyError(err) {
		t.Fatalf("Append e2 error = %v, want ConcurrencyError", err)
	}
}

func testRequireAllTags(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "require-all-tags")
	orderType := mustType(t, "order-created")
	orderTag := mustTag(t, "order", "123")
	productTag := mustTag(t, "product", "456")

	e1 := mustEvent(t, orderType, []dcb.EventTag{orderTag}, map[string]string{})
	e2 := mustEvent(t, orderType, []dcb.EventTag{orderTag, productTag}, map[string]string{})
	e3 := mustEvent(t, orderType, []dcb.EventTag{productTag}, map[string]string{})
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1, e2, e3}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	query := dcb.NewStreamQuery().WithTags(orderTag, productTag).RequiringAllTags(true)
	got, err := store.Stream(context.Background(), tenant, query)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(got))
	}
	if got[0].ID != e2.ID {
		t.Errorf("got event %s, want %s", got[0].ID, e2.ID)
	}
}

func testMaxCount(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "max-count")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "123")

	events := make([]dcb.EventToPersist, 5)
	for i := range events {
		events[i] = mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": fmt.Sprint(i)})
	}
	appended, err := store.Append(context.Background(), tenant, events)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	query := dcb.NewStreamQuery().WithTags(tag)
	got, err := store.Stream(context.Background(), tenant, query, dcb.WithMaxCount(3))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d envelopes, want 3", len(got))
	}
	for i := 0; i < 3; i++ {
		if got[i].ID != appended[i].ID {
			t.Errorf("envelope %d = %s, want %s", i, got[i].ID, appended[i].ID)
		}
	}
}

func testMetadataPreservation(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "metadata-preservation")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "1")

	raw, _ := json.Marshal(map[string]string{})
	event, err := dcb.NewEventToPersist(orderType, []dcb.EventTag{tag}, raw)
	if err != nil {
		t.Fatalf("NewEventToPersist: %v", err)
	}
	event.Metadata = map[string]string{"correlation_id": "abc-123", "actor": "tester"}

	envs, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{event})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if envs[0].Metadata["correlation_id"] != "abc-123" || envs[0].Metadata["actor"] != "tester" {
		t.Errorf("metadata not preserved on append result: %v", envs[0].Metadata)
	}
	if _, ok := envs[0].Position(); !ok {
		t.Errorf("append result missing _position")
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(got))
	}
	if got[0].Metadata["correlation_id"] != "abc-123" || got[0].Metadata["actor"] != "tester" {
		t.Errorf("metadata not preserved on read: %v", got[0].Metadata)
	}
	if _, ok := got[0].Position(); !ok {
		t.Errorf("read result missing _position")
	}
}

func testConcurrency(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "concurrency")
	orderType := mustType(t, "order-created")
	tag := mustTag(t, "order", "123")
	boundary := dcb.NewStreamQuery().WithTags(tag)

	const writers = 8
	results := make([]error, writers)

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			event := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"writer": fmt.Sprint(i)})
			_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{event},
				dcb.WithConsistencyBoundary(boundary))
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case dcb.IsConcurrencyError(err):
			conflicts++
		default:
			t.Errorf("unexpected error from writer: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
	if conflicts != writers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, writers-1)
	}

	got, err := store.Stream(context.Background(), tenant, boundary)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("store contains %d events after race, want 1", len(got))
	}
}

// --- concrete scenarios ---

func testS1(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "s1")
	event := mustEvent(t, mustType(t, "order-created"), []dcb.EventTag{mustTag(t, "order", "123")}, map[string]string{})

	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{event}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(mustTag(t, "order", "123")))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(got))
	}
	pos, ok := got[0].Position()
	if !ok || pos != 1 {
		t.Errorf("position = %v (ok=%v), want 1", pos, ok)
	}
}

func testS2(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "s2")
	tag := mustTag(t, "order", "123")
	orderType := mustType(t, "order-created")

	a := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "a"})
	b := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "b"})
	c := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": "c"})
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{a, b, c}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	wantIDs := []string{a.ID.String(), b.ID.String(), c.ID.String()}
	if gotIDs := ids(got); fmt.Sprint(gotIDs) != fmt.Sprint(wantIDs) {
		t.Fatalf("got ids %v, want %v", gotIDs, wantIDs)
	}
	pos := positions(t, got)
	if pos[0] != 1 || pos[1] != 2 || pos[2] != 3 {
		t.Errorf("positions = %v, want [1 2 3]", pos)
	}
}

func testS3(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "s3")
	x := mustEvent(t, mustType(t, "order-created"), []dcb.EventTag{mustTag(t, "order", "1")}, map[string]string{})

	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{x}); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{x})
	if !dcb.IsDuplicateIDError(err) {
		t.Fatalf("second Append error = %v, want DuplicateIDError", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(mustTag(t, "order", "1")))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d events, want 1", len(got))
	}
}

func testS4(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "s4")
	tag := mustTag(t, "order", "123")
	orderType := mustType(t, "order-created")

	e1 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	envs, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1})
	if err != nil {
		t.Fatalf("Append e1: %v", err)
	}

	e2 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	boundary := dcb.NewStreamQuery().WithTags(tag)
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e2},
		dcb.WithConsistencyBoundary(boundary), dcb.WithExpectedLastEventID(envs[0].ID.String())); err != nil {
		t.Fatalf("Append e2: %v", err)
	}

	got, err := store.Stream(context.Background(), tenant, boundary)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	wantIDs := []string{e1.ID.String(), e2.ID.String()}
	if gotIDs := ids(got); fmt.Sprint(gotIDs) != fmt.Sprint(wantIDs) {
		t.Fatalf("got ids %v, want %v", gotIDs, wantIDs)
	}
}

func testS5(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "s5")
	tag := mustTag(t, "order", "123")
	orderType := mustType(t, "order-created")

	e1 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	envs, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1})
	if err != nil {
		t.Fatalf("Append e1: %v", err)
	}
	e2 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	if _, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e2}); err != nil {
		t.Fatalf("Append e2: %v", err)
	}

	e3 := mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{})
	boundary := dcb.NewStreamQuery().WithTags(tag)
	_, err = store.Append(context.Background(), tenant, []dcb.EventToPersist{e3},
		dcb.WithConsistencyBoundary(boundary), dcb.WithExpectedLastEventID(envs[0].ID.String()))
	if !dcb.IsConcurrencyError(err) {
		t.Fatalf("Append e3 error = %v, want ConcurrencyError", err)
	}

	got, err := store.Stream(context.Background(), tenant, boundary)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	wantIDs := []string{e1.ID.String(), e2.ID.String()}
	if gotIDs := ids(got); fmt.Sprint(gotIDs) != fmt.Sprint(wantIDs) {
		t.Fatalf("got ids %v, want %v", gotIDs, wantIDs)
	}
}

func testS6(t *testing.T, newStore Factory) {
	store := newStore(t)
	tenant := mustTenant(t, "s6")
	tag := mustTag(t, "order", "123")
	orderType := mustType(t, "order-created")

	events := make([]dcb.EventToPersist, 5)
	for i := range events {
		events[i] = mustEvent(t, orderType, []dcb.EventTag{tag}, map[string]string{"n": fmt.Sprint(i)})
	}
	appended, err := store.Append(context.Background(), tenant, events)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag), dcb.WithMaxCount(3))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	wantIDs := ids(appended[:3])
	if gotIDs := ids(got); fmt.Sprint(gotIDs) != fmt.Sprint(wantIDs) {
		t.Fatalf("got ids %v, want %v", gotIDs, wantIDs)
	}
}
