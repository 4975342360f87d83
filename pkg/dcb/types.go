// Package dcb implements a multi-tenant, append-only event store with a
// Dynamic Consistency Boundary: writers describe, at append time, the set of
// events whose existence would invalidate their decision, and the store
// accepts the append only if that set has not grown since the writer last
// read it.
package dcb

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	eventTypePattern = regexp.MustCompile(`^[a-z-]+$`)
	tagPartPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Tenant is an opaque, non-empty tenant identifier. Every Store operation is
// scoped to exactly one Tenant; the store never crosses tenants within a
// single Stream or Append call.
type Tenant string

// NewTenant validates and returns a Tenant. Empty identifiers are rejected.
func NewTenant(id string) (Tenant, error) {
	if id == "" {
		return "", &ValidationError{
			EventStoreError: EventStoreError{Op: "NewTenant", Err: errEmptyTenant},
			Field:           "tenant",
			Value:           id,
		}
	}
	return Tenant(id), nil
}

// EventType is a non-empty token matching ^[a-z-]+$.
type EventType string

// WildcardEventType matches any event type when used in a StreamQuery.
const WildcardEventType EventType = "*"

// NewEventType validates and returns an EventType.
func NewEventType(s string) (EventType, error) {
	if !eventTypePattern.MatchString(s) {
		return "", &ValidationError{
			EventStoreError: EventStoreError{Op: "NewEventType", Err: errInvalidEventType},
			Field:           "type",
			Value:           s,
		}
	}
	return EventType(s), nil
}

// EventTag is a typed label attached to an event, used as an index for DCB
// queries. Both Concept and ID must be non-empty and match
// ^[A-Za-z0-9_-]+$. Equality is structural.
type EventTag struct {
	Concept string
	ID      string
}

// NewEventTag validates and constructs an EventTag.
func NewEventTag(concept, id string) (EventTag, error) {
	if !tagPartPattern.MatchString(concept) {
		return EventTag{}, &ValidationError{
			EventStoreError: EventStoreError{Op: "NewEventTag", Err: errInvalidTag},
			Field:           "concept",
			Value:           concept,
		}
	}
	if !tagPartPattern.MatchString(id) {
		return EventTag{}, &ValidationError{
			EventStoreError: EventStoreError{Op: "NewEventTag", Err: errInvalidTag},
			Field:           "id",
			Value:           id,
		}
	}
	return EventTag{Concept: concept, ID: id}, nil
}

// ParseEventTag splits "concept:id" on the first colon only. Both parts are
// then validated as in NewEventTag, so an id containing a further colon is
// rejected.
func ParseEventTag(s string) (EventTag, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return NewEventTag(s[:i], s[i+1:])
		}
	}
	return EventTag{}, &ValidationError{
		EventStoreError: EventStoreError{Op: "ParseEventTag", Err: errInvalidTag},
		Field:           "tag",
		Value:           s,
	}
}

// String returns the canonical "concept:id" form.
func (t EventTag) String() string {
	return t.Concept + ":" + t.ID
}

// Equal reports structural equality between two tags.
func (t EventTag) Equal(other EventTag) bool {
	return t.Concept == other.Concept && t.ID == other.ID
}

// EventToPersist is a caller-constructed event submitted to Append.
type EventToPersist struct {
	ID       uuid.UUID
	Type     EventType
	Tags     []EventTag
	Payload  json.RawMessage
	Metadata map[string]string
	Created  time.Time
}

// NewEventToPersist builds an EventToPersist with a fresh time-ordered
// (UUIDv7) id and the current time as Created.
func NewEventToPersist(eventType EventType, tags []EventTag, payload json.RawMessage) (EventToPersist, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return EventToPersist{}, &EventStoreError{Op: "NewEventToPersist", Err: err}
	}
	return EventToPersist{
		ID:      id,
		Type:    eventType,
		Tags:    tags,
		Payload: payload,
		Created: time.Now().UTC(),
	}, nil
}

// reservedMetadataKeys must never be set by callers; the store owns them.
var reservedMetadataKeys = map[string]struct{}{
	"_position":      {},
	"_trace_context": {},
	"traceparent":    {},
	"tracestate":     {},
}

// PositionMetadataKey is the metadata key under which Append/Stream expose
// the assigned global position, as a decimal string.
const PositionMetadataKey = "_position"

// TraceContextAvailableKey is set on read to "available" when the stored
// trace context parses as valid.
const TraceContextAvailableKey = "_trace_context"

// EventEnvelope is the stored form of an event as observed by readers.
type EventEnvelope struct {
	ID       uuid.UUID
	Type     EventType
	Payload  json.RawMessage
	Metadata map[string]string
	Created  time.Time
}

// Position returns the envelope's assigned global position, parsed from
// Metadata[PositionMetadataKey].
func (e EventEnvelope) Position() (int64, bool) {
	raw, ok := e.Metadata[PositionMetadataKey]
	if !ok {
		return 0, false
	}
	pos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return pos, true
}

// StoredEvent is the internal representation shared by both backends.
type StoredEvent struct {
	Position int64
	ID       uuid.UUID
	Tenant   Tenant
	Type     EventType
	Tags     []EventTag
	Payload  json.RawMessage
	Metadata map[string]string
	Created  time.Time
}

// Envelope converts a StoredEvent into the public EventEnvelope form,
// injecting the assigned position into metadata.
func (e StoredEvent) Envelope() EventEnvelope {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[PositionMetadataKey] = strconv.FormatInt(e.Position, 10)
	return EventEnvelope{
		ID:       e.ID,
		Type:     e.Type,
		Payload:  e.Payload,
		Metadata: md,
		Created:  e.Created,
	}
}

// ValidateMetadata rejects caller-supplied metadata that sets one of the
// keys the store itself owns (_position, _trace_context, traceparent,
// tracestate).
func ValidateMetadata(metadata map[string]string) error {
	for k := range metadata {
		if _, reserved := reservedMetadataKeys[k]; reserved {
			return &ValidationError{
				EventStoreError: EventStoreError{Op: "ValidateMetadata", Err: errReservedMetadataKey},
				Field:           "metadata",
				Value:           k,
			}
		}
	}
	return nil
}

// HasTag reports whether the event carries the given tag.
func (e StoredEvent) HasTag(tag EventTag) bool {
	for _, t := range e.Tags {
		if t.Equal(tag) {
			return true
		}
	}
	return false
}
