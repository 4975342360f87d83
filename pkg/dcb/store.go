package dcb

import "context"

// Store is the DCB backend contract: two tenant-scoped operations, Stream
// and Append. Both are implemented by the in-memory reference backend
// (package memory) and the relational backend (package postgres); the
// dcbtest package exercises a Store implementation against the same
// property and scenario suite regardless of which one it is.
type Store interface {
	// Stream returns all stored events of tenant matching query, ordered by
	// ascending position. It never fails except on I/O or cancellation.
	Stream(ctx context.Context, tenant Tenant, query StreamQuery, opts ...StreamOption) ([]EventEnvelope, error)

	// Append inserts events for tenant under a single atomic unit: either
	// all positions are assigned contiguously or none are. If events is
	// empty, Append returns (nil, nil) without side effects.
	Append(ctx context.Context, tenant Tenant, events []EventToPersist, opts ...AppendOption) ([]EventEnvelope, error)
}

// streamConfig holds the resolved StreamOption values.
type streamConfig struct {
	maxCount int
}

// StreamOption configures a single Stream call.
type StreamOption func(*streamConfig)

// WithMaxCount truncates the result to the first n events by position after
// ordering. n<=0 means no limit.
func WithMaxCount(n int) StreamOption {
	return func(c *streamConfig) {
		c.maxCount = n
	}
}

// resolveStreamConfig applies opts over the zero value.
func resolveStreamConfig(opts []StreamOption) streamConfig {
	var c streamConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// MaxCount exposes the resolved max-count, for use by backend
// implementations outside this package.
func (c streamConfig) MaxCount() int { return c.maxCount }

// ResolveStreamOptions is the exported entry point backend packages use to
// turn StreamOptions into a concrete configuration.
func ResolveStreamOptions(opts ...StreamOption) streamConfig {
	return resolveStreamConfig(opts)
}

// appendConfig holds the resolved AppendOption values: the DCB consistency
// boundary and, optionally, the id of the last event the writer observed
// when it last evaluated that boundary.
type appendConfig struct {
	boundary            *StreamQuery
	expectedLastEventID *string
}

// AppendOption configures a single Append call's consistency boundary.
type AppendOption func(*appendConfig)

// WithConsistencyBoundary sets the query whose matching events, if any new
// one has appeared since the writer last checked, invalidate the append.
func WithConsistencyBoundary(q StreamQuery) AppendOption {
	return func(c *appendConfig) {
		c.boundary = &q
	}
}

// WithExpectedLastEventID narrows the boundary check to events with a
// position strictly greater than the one identified by id. If the id does
// not exist in the tenant, the check degenerates to "no matching events at
// all" (its position is treated as -1).
func WithExpectedLastEventID(id string) AppendOption {
	return func(c *appendConfig) {
		c.expectedLastEventID = &id
	}
}

// ResolveAppendOptions is the exported entry point backend packages use to
// turn AppendOptions into a concrete configuration.
func ResolveAppendOptions(opts ...AppendOption) appendConfig {
	var c appendConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Boundary returns the configured consistency boundary, or nil if Append was
// requested unconditionally.
func (c appendConfig) Boundary() *StreamQuery { return c.boundary }

// ExpectedLastEventID returns the configured expected-last-event id, or nil
// if none was given.
func (c appendConfig) ExpectedLastEventID() *string { return c.expectedLastEventID }
