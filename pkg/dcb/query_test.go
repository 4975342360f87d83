package dcb_test

import (
	"testing"

	"go-dcb/pkg/dcb"
)

func mustTag(t *testing.T, concept, id string) dcb.EventTag {
	t.Helper()
	tag, err := dcb.NewEventTag(concept, id)
	if err != nil {
		t.Fatalf("NewEventTag(%q, %q): %v", concept, id, err)
	}
	return tag
}

func mustType(t *testing.T, s string) dcb.EventType {
	t.Helper()
	et, err := dcb.NewEventType(s)
	if err != nil {
		t.Fatalf("NewEventType(%q): %v", s, err)
	}
	return et
}

func TestStreamQueryIsImmutable(t *testing.T) {
	base := dcb.NewStreamQuery()
	withTags := base.WithTags(mustTag(t, "order", "1"))
	if len(base.Tags()) != 0 {
		t.Fatalf("WithTags mutated the receiver: %v", base.Tags())
	}
	if len(withTags.Tags()) != 1 {
		t.Fatalf("WithTags did not record the tag: %v", withTags.Tags())
	}
}

func TestStreamQueryEmpty(t *testing.T) {
	if !dcb.NewStreamQuery().IsEmpty() {
		t.Error("new query is not reported empty")
	}
	q := dcb.NewStreamQuery().WithTags(mustTag(t, "order", "1"))
	if q.IsEmpty() {
		t.Error("query with a tag is reported empty")
	}
}

func TestStreamQueryMatchesEmptyMatchesNothing(t *testing.T) {
	q := dcb.NewStreamQuery()
	if q.Matches(mustType(t, "order-created"), []dcb.EventTag{mustTag(t, "order", "1")}) {
		t.Error("empty query matched an event, want no match")
	}
}

func TestStreamQueryMatchesTagsDefaultAny(t *testing.T) {
	orderTag := mustTag(t, "order", "1")
	productTag := mustTag(t, "product", "2")
	q := dcb.NewStreamQuery().WithTags(orderTag, productTag)

	if !q.Matches(mustType(t, "order-created"), []dcb.EventTag{orderTag}) {
		t.Error("query did not match on tag overlap")
	}
	if q.Matches(mustType(t, "order-created"), []dcb.EventTag{mustTag(t, "unrelated", "3")}) {
		t.Error("query matched an event with no overlapping tag")
	}
}

func TestStreamQueryMatchesTagsRequireAll(t *testing.T) {
	orderTag := mustTag(t, "order", "1")
	productTag := mustTag(t, "product", "2")
	q := dcb.NewStreamQuery().WithTags(orderTag, productTag).RequiringAllTags(true)

	if q.Matches(mustType(t, "order-created"), []dcb.EventTag{orderTag}) {
		t.Error("RequiringAllTags matched an event with only one of the tags")
	}
	if !q.Matches(mustType(t, "order-created"), []dcb.EventTag{orderTag, productTag}) {
		t.Error("RequiringAllTags did not match an event with both tags")
	}
}

func TestStreamQueryMatchesWildcardType(t *testing.T) {
	tag := mustTag(t, "order", "1")
	q := dcb.NewStreamQuery().WithTags(tag).WithEventTypes(dcb.WildcardEventType)

	if !q.Matches(mustType(t, "order-created"), []dcb.EventTag{tag}) {
		t.Error("wildcard type query did not match order-created")
	}
	if !q.Matches(mustType(t, "order-cancelled"), []dcb.EventTag{tag}) {
		t.Error("wildcard type query did not match order-cancelled")
	}
}

func TestStreamQueryMatchesMultipleTypesRequireAllIsUnsatisfiable(t *testing.T) {
	tag := mustTag(t, "order", "1")
	q := dcb.NewStreamQuery().WithTags(tag).
		WithEventTypes(mustType(t, "order-created"), mustType(t, "order-cancelled")).
		RequiringAllEventTypes(true)

	if q.Matches(mustType(t, "order-created"), []dcb.EventTag{tag}) {
		t.Error("RequiringAllEventTypes with >1 type matched a single-typed event, want unsatisfiable")
	}
}

func TestStreamQueryStringReflectsRequireAll(t *testing.T) {
	tag := mustTag(t, "order", "1")
	any := dcb.NewStreamQuery().WithTags(tag).WithEventTypes(mustType(t, "order-created"))
	all := any.RequiringAllTags(true).RequiringAllEventTypes(true)

	if any.String() == all.String() {
		t.Errorf("String() did not distinguish ANY from ALL semantics: %q", any.String())
	}
}
