package postgres

import (
	"fmt"
	"strings"

	"go-dcb/pkg/dcb"
)

// queryPredicate renders a StreamQuery into a SQL boolean expression over
// the events table. It always ANDs tenant_id first. argIndex is the next
// available $N placeholder; it returns the rendered SQL, the bind args in
// order, and the next free placeholder index.
func queryPredicate(tenant dcb.Tenant, query dcb.StreamQuery, argIndex int) (string, []any, int) {
	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIndex))
	args = append(args, string(tenant))
	argIndex++

	dims, dimArgs, next := dimensionPredicate(query, argIndex)
	conditions = append(conditions, dims)
	args = append(args, dimArgs...)
	argIndex = next

	return strings.Join(conditions, " AND "), args, argIndex
}

// dimensionPredicate renders only the tag/type dimensions of query (no
// tenant clause), matching the in-memory backend's handling of the wildcard
// type and the empty query:
//   - an empty query (no tags, no types) renders as the literal FALSE,
//     matching nothing, rather than degrading to "all tenant rows".
//   - a literal "*" event type omits the event_type predicate entirely
//     rather than comparing against the string "*".
func dimensionPredicate(query dcb.StreamQuery, argIndex int) (string, []any, int) {
	if query.IsEmpty() {
		return "FALSE", nil, argIndex
	}

	var conditions []string
	var args []any

	if tags := query.Tags(); len(tags) > 0 {
		arr := make([]string, len(tags))
		for i, t := range tags {
			arr[i] = t.String()
		}
		op := "&&"
		if query.RequireAllTags() {
			op = "@>"
		}
		conditions = append(conditions, fmt.Sprintf("tags %s $%d", op, argIndex))
		args = append(args, arr)
		argIndex++
	}

	if types := nonWildcardTypes(query.Types()); types != nil {
		switch {
		case len(types) == 0:
			// A "*" was present: matches any type, add no predicate.
		case len(types) == 1 && query.RequireAllTypes():
			conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIndex))
			args = append(args, string(types[0]))
			argIndex++
		case query.RequireAllTypes():
			// |types| > 1 with RequireAllTypes is unsatisfiable for a
			// single event, which carries exactly one type.
			conditions = append(conditions, "FALSE")
		default:
			strs := make([]string, len(types))
			for i, t := range types {
				strs[i] = string(t)
			}
			conditions = append(conditions, fmt.Sprintf("event_type = ANY($%d::text[])", argIndex))
			args = append(args, strs)
			argIndex++
		}
	}

	if len(conditions) == 0 {
		return "TRUE", args, argIndex
	}
	return "(" + strings.Join(conditions, " AND ") + ")", args, argIndex
}

// nonWildcardTypes returns nil if types is empty (no type dimension at all),
// an empty non-nil slice if any entry is "*" (the wildcard matches every
// type, as in StreamQuery.Matches), otherwise types unchanged.
func nonWildcardTypes(types []dcb.EventType) []dcb.EventType {
	if len(types) == 0 {
		return nil
	}
	for _, t := range types {
		if t == dcb.WildcardEventType {
			return []dcb.EventType{}
		}
	}
	return types
}

// consistencyPredicate renders the boundary check for an Append: tenant_id,
// a position floor derived from expectedLastEventID (omitted entirely when
// expectedLastEventID is nil, rather than comparing against a filler value),
// ANDed with boundary's dimensions. table is the schema-qualified, already
// sanitized events table identifier.
func consistencyPredicate(table string, tenant dcb.Tenant, boundary dcb.StreamQuery, expectedLastEventID *string, argIndex int) (string, []any, int) {
	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIndex))
	args = append(args, string(tenant))
	argIndex++

	if expectedLastEventID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"position > COALESCE((SELECT position FROM %s WHERE tenant_id = $%d AND id = $%d), -1)",
			table, argIndex, argIndex+1,
		))
		args = append(args, string(tenant), *expectedLastEventID)
		argIndex += 2
	}

	dims, dimArgs, next := dimensionPredicate(boundary, argIndex)
	conditions = append(conditions, dims)
	args = append(args, dimArgs...)
	argIndex = next

	return strings.Join(conditions, " AND "), args, argIndex
}
