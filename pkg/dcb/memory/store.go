// Package memory provides an in-memory reference implementation of
// dcb.Store. It favors clarity and obvious correctness over throughput: a
// single mutex serializes every Append, and Stream holds that mutex only
// while copying the tenant's events.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go-dcb/pkg/dcb"
	"go-dcb/pkg/dcb/telemetry"
)

// Store is an in-memory, process-local implementation of dcb.Store.
// The zero value is not usable; construct with New.
type Store struct {
	mu             sync.Mutex
	events         map[dcb.Tenant]map[string]dcb.StoredEvent // tenant -> id -> event
	globalPosition int64
	tracer         telemetry.Tracer
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		events: make(map[dcb.Tenant]map[string]dcb.StoredEvent),
		tracer: telemetry.NoopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithTracer installs a telemetry.Tracer used to open spans around Stream
// and Append.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

var _ dcb.Store = (*Store)(nil)

// Stream snapshots the tenant's events, filters by query, orders by
// position ascending, and truncates to maxCount if requested. It takes the
// store mutex only to copy the tenant's events, not while filtering; since
// Append holds the same mutex for its whole duration, a snapshot never
// contains part of an Append.
func (s *Store) Stream(ctx context.Context, tenant dcb.Tenant, query dcb.StreamQuery, opts ...dcb.StreamOption) ([]dcb.EventEnvelope, error) {
	cfg := dcb.ResolveStreamOptions(opts...)

	ctx, span := s.tracer.StartStream(ctx, query.String(), cfg.MaxCount())
	defer span.End()

	s.mu.Lock()
	tenantEvents := s.events[tenant]
	snapshot := make([]dcb.StoredEvent, 0, len(tenantEvents))
	for _, e := range tenantEvents {
		snapshot = append(snapshot, e)
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matched []dcb.StoredEvent
	for _, e := range snapshot {
		if query.Matches(e.Type, e.Tags) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Position < matched[j].Position })

	if max := cfg.MaxCount(); max > 0 && len(matched) > max {
		matched = matched[:max]
	}

	envelopes := make([]dcb.EventEnvelope, len(matched))
	for i, e := range matched {
		envelopes[i] = e.Envelope()
		span.TraceContextAvailable(envelopes[i].Metadata)
	}
	return envelopes, nil
}

// Append validates the consistency boundary and inserts events within a
// single critical section, so the check and the position allocation are
// trivially serializable with respect to every other Append.
func (s *Store) Append(ctx context.Context, tenant dcb.Tenant, events []dcb.EventToPersist, opts ...dcb.AppendOption) ([]dcb.EventEnvelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	cfg := dcb.ResolveAppendOptions(opts...)

	ctx, span := s.tracer.StartAppend(ctx, len(events))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tenantEvents := s.events[tenant]

	if boundary := cfg.Boundary(); boundary != nil {
		if violatesBoundary(tenantEvents, *boundary, cfg.ExpectedLastEventID()) {
			return nil, &dcb.ConcurrencyError{
				EventStoreError: dcb.EventStoreError{Op: "Append", Err: errConcurrencyConflict},
				Tenant:          tenant,
			}
		}
	}

	seenInBatch := make(map[string]struct{}, len(events))
	for _, e := range events {
		if err := dcb.ValidateMetadata(e.Metadata); err != nil {
			return nil, err
		}
		id := e.ID.String()
		if _, dup := seenInBatch[id]; dup {
			return nil, &dcb.DuplicateIDError{
				EventStoreError: dcb.EventStoreError{Op: "Append", Err: errDuplicateID},
				ID:              id,
			}
		}
		seenInBatch[id] = struct{}{}

		if tenantEvents != nil {
			if _, exists := tenantEvents[id]; exists {
				return nil, &dcb.DuplicateIDError{
					EventStoreError: dcb.EventStoreError{Op: "Append", Err: errDuplicateID},
					ID:              id,
				}
			}
		}
		for _, other := range s.events {
			if _, exists := other[id]; exists {
				return nil, &dcb.DuplicateIDError{
					EventStoreError: dcb.EventStoreError{Op: "Append", Err: errDuplicateID},
					ID:              id,
				}
			}
		}
	}

	if tenantEvents == nil {
		tenantEvents = make(map[string]dcb.StoredEvent, len(events))
		s.events[tenant] = tenantEvents
	}

	stored := make([]dcb.StoredEvent, len(events))
	for i, e := range events {
		metadata := make(map[string]string, len(e.Metadata)+2)
		for k, v := range e.Metadata {
			metadata[k] = v
		}
		span.InjectTraceContext(metadata)

		pos := atomic.AddInt64(&s.globalPosition, 1)
		se := dcb.StoredEvent{
			Position: pos,
			ID:       e.ID,
			Tenant:   tenant,
			Type:     e.Type,
			Tags:     e.Tags,
			Payload:  e.Payload,
			Metadata: metadata,
			Created:  e.Created,
		}
		tenantEvents[e.ID.String()] = se
		stored[i] = se
		span.RecordEvent(e.ID.String(), string(e.Type), tagStrings(e.Tags))
	}

	envelopes := make([]dcb.EventEnvelope, len(stored))
	for i, e := range stored {
		envelopes[i] = e.Envelope()
	}
	return envelopes, nil
}

// violatesBoundary reports whether any event in tenantEvents matches
// boundary with a position beyond what expectedLastEventID permits.
func violatesBoundary(tenantEvents map[string]dcb.StoredEvent, boundary dcb.StreamQuery, expectedLastEventID *string) bool {
	floor := int64(-1)
	if expectedLastEventID != nil {
		if e, ok := tenantEvents[*expectedLastEventID]; ok {
			floor = e.Position
		}
	}
	for _, e := range tenantEvents {
		if e.Position <= floor {
			continue
		}
		if boundary.Matches(e.Type, e.Tags) {
			return true
		}
	}
	return false
}

func tagStrings(tags []dcb.EventTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// AllEvents returns every stored event for tenant, in no particular order.
// Debugging accessor, not part of the dcb.Store contract.
func (s *Store) AllEvents(tenant dcb.Tenant) []dcb.StoredEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenantEvents := s.events[tenant]
	out := make([]dcb.StoredEvent, 0, len(tenantEvents))
	for _, e := range tenantEvents {
		out = append(out, e)
	}
	return out
}

// Count returns the number of stored events for tenant. Debugging accessor.
func (s *Store) Count(tenant dcb.Tenant) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[tenant])
}

// Contains reports whether an event with the given id exists for tenant.
// Debugging accessor.
func (s *Store) Contains(tenant dcb.Tenant, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[tenant][id]
	return ok
}
