package dcb

import "strings"

// StreamQuery is an immutable predicate over tags and event types, used both
// to select events for Stream and, embedded in an AppendOption, as the
// consistency boundary for Append. The zero value matches nothing.
type StreamQuery struct {
	tags            []EventTag
	types           []EventType
	requireAllTags  bool
	requireAllTypes bool
}

// NewStreamQuery returns the empty query, which matches nothing as a match
// predicate.
func NewStreamQuery() StreamQuery {
	return StreamQuery{}
}

// WithTags returns a new query with the given tags appended.
func (q StreamQuery) WithTags(tags ...EventTag) StreamQuery {
	next := q
	next.tags = append(append([]EventTag{}, q.tags...), tags...)
	return next
}

// WithEventTypes returns a new query with the given types appended.
func (q StreamQuery) WithEventTypes(types ...EventType) StreamQuery {
	next := q
	next.types = append(append([]EventType{}, q.types...), types...)
	return next
}

// RequiringAllTags returns a new query with RequireAllTags set to v.
func (q StreamQuery) RequiringAllTags(v bool) StreamQuery {
	next := q
	next.requireAllTags = v
	return next
}

// RequiringAllEventTypes returns a new query with RequireAllTypes set to v.
func (q StreamQuery) RequiringAllEventTypes(v bool) StreamQuery {
	next := q
	next.requireAllTypes = v
	return next
}

// Tags returns the query's tags.
func (q StreamQuery) Tags() []EventTag { return append([]EventTag{}, q.tags...) }

// Types returns the query's event types.
func (q StreamQuery) Types() []EventType { return append([]EventType{}, q.types...) }

// RequireAllTags reports whether tag matching requires all tags present.
func (q StreamQuery) RequireAllTags() bool { return q.requireAllTags }

// RequireAllTypes reports whether type matching requires exact single-type
// equality.
func (q StreamQuery) RequireAllTypes() bool { return q.requireAllTypes }

// IsEmpty reports whether the query has neither tags nor types, the state
// that matches nothing on both backends.
func (q StreamQuery) IsEmpty() bool {
	return len(q.tags) == 0 && len(q.types) == 0
}

// Matches reports whether the given tags/type satisfy the query: an empty
// query matches nothing; otherwise each non-empty dimension must hold, and
// both dimensions are ANDed together.
func (q StreamQuery) Matches(eventType EventType, tags []EventTag) bool {
	if q.IsEmpty() {
		return false
	}

	if len(q.tags) > 0 {
		if !q.matchesTags(tags) {
			return false
		}
	}

	if len(q.types) > 0 {
		if !q.matchesType(eventType) {
			return false
		}
	}

	return true
}

func (q StreamQuery) matchesTags(tags []EventTag) bool {
	has := func(tag EventTag) bool {
		for _, t := range tags {
			if t.Equal(tag) {
				return true
			}
		}
		return false
	}
	if q.requireAllTags {
		for _, want := range q.tags {
			if !has(want) {
				return false
			}
		}
		return true
	}
	for _, want := range q.tags {
		if has(want) {
			return true
		}
	}
	return false
}

func (q StreamQuery) matchesType(eventType EventType) bool {
	for _, t := range q.types {
		if t == WildcardEventType {
			return true
		}
	}
	if q.requireAllTypes {
		if len(q.types) != 1 {
			return false
		}
		return q.types[0] == eventType
	}
	for _, t := range q.types {
		if t == eventType {
			return true
		}
	}
	return false
}

// String returns the canonical form used for telemetry and logging:
//   - "*" when the query has no conditions.
//   - "tag in ['t1','t2']" or "event type in ['e1']" for a single dimension.
//   - both dimensions joined with " AND " if either RequireAll* is set,
//     otherwise " OR ".
func (q StreamQuery) String() string {
	if q.IsEmpty() {
		return "*"
	}

	var parts []string
	if len(q.tags) > 0 {
		strs := make([]string, len(q.tags))
		for i, t := range q.tags {
			strs[i] = "'" + t.String() + "'"
		}
		parts = append(parts, "tag in ["+strings.Join(strs, ",")+"]")
	}
	if len(q.types) > 0 {
		strs := make([]string, len(q.types))
		for i, t := range q.types {
			strs[i] = "'" + string(t) + "'"
		}
		parts = append(parts, "event type in ["+strings.Join(strs, ",")+"]")
	}

	if len(parts) == 1 {
		return parts[0]
	}

	sep := " OR "
	if q.requireAllTags || q.requireAllTypes {
		sep = " AND "
	}
	return strings.Join(parts, sep)
}
