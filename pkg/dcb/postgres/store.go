// Package postgres implements the durable, SQL-backed dcb.Store. A single
// atomic statement both checks the consistency boundary and inserts, so the
// check and the insert share one transaction snapshot; batches at or above
// BulkInsertThreshold use one multi-row INSERT, smaller ones (and bulk
// failures) fall back to inserting one event at a time.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-dcb/pkg/dcb"
	"go-dcb/pkg/dcb/telemetry"
)

const uniqueViolationCode = "23505"

// Store is the relational dcb.Store backed by a pgxpool.Pool.
type Store struct {
	pool   *pgxpool.Pool
	config PostgresConfig
	tracer telemetry.Tracer
}

// New validates cfg and returns a Store using pool for connections.
func New(pool *pgxpool.Pool, cfg PostgresConfig, opts ...Option) (*Store, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, &dcb.ValidationError{
			EventStoreError: dcb.EventStoreError{Op: "New", Err: err},
			Field:           "config",
		}
	}
	s := &Store{
		pool:   pool,
		config: normalized,
		tracer: telemetry.NoopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
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

// table returns the schema-qualified, identifier-quoted events table this
// Store reads and writes.
func (s *Store) table() string {
	return pgx.Identifier{s.config.Schema, "events"}.Sanitize()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Stream returns all stored events of tenant matching query, ordered by
// ascending position, using the ambient transaction scope if one is present
// on ctx, otherwise its own pooled connection.
func (s *Store) Stream(ctx context.Context, tenant dcb.Tenant, query dcb.StreamQuery, opts ...dcb.StreamOption) ([]dcb.EventEnvelope, error) {
	cfg := dcb.ResolveStreamOptions(opts...)

	ctx, span := s.tracer.StartStream(ctx, query.String(), cfg.MaxCount())
	defer span.End()

	var q querier = s.pool
	if tx, ok := scopeFromContext(ctx); ok {
		q = tx
	}

	predicate, args, next := queryPredicate(tenant, query, 1)
	sqlQuery := fmt.Sprintf(
		"SELECT id, event_type, tags, data, metadata, created_at, position FROM %s WHERE %s ORDER BY position ASC",
		s.table(), predicate,
	)
	if max := cfg.MaxCount(); max > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT $%d", next)
		args = append(args, max)
	}

	rows, err := q.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Stream", Err: err},
			Resource:        "database",
		}
	}
	defer rows.Close()

	var envelopes []dcb.EventEnvelope
	for rows.Next() {
		se, err := scanStoredEvent(rows, tenant)
		if err != nil {
			return nil, err
		}
		env := se.Envelope()
		span.TraceContextAvailable(env.Metadata)
		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Stream", Err: err},
			Resource:        "database",
		}
	}

	return envelopes, nil
}

// Append inserts events for tenant as a single atomic unit. If ctx carries
// an ambient transaction scope (see WithTx), Append reuses it and does not
// commit or roll back; otherwise it opens its own transaction at READ
// COMMITTED, committing on success and rolling back on any failure.
func (s *Store) Append(ctx context.Context, tenant dcb.Tenant, events []dcb.EventToPersist, opts ...dcb.AppendOption) ([]dcb.EventEnvelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	cfg := dcb.ResolveAppendOptions(opts...)

	ctx, span := s.tracer.StartAppend(ctx, len(events))
	defer span.End()

	for _, e := range events {
		if err := dcb.ValidateMetadata(e.Metadata); err != nil {
			return nil, err
		}
	}

	if tx, ok := scopeFromContext(ctx); ok {
		return s.appendInTx(ctx, tx, tenant, events, cfg, span)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: fmt.Errorf("begin transaction: %w", err)},
			Resource:        "database",
		}
	}
	defer tx.Rollback(ctx)

	envelopes, err := s.appendInTx(ctx, tx, tenant, events, cfg, span)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: fmt.Errorf("commit transaction: %w", err)},
			Resource:        "database",
		}
	}
	return envelopes, nil
}

// appendInTx performs the actual check-and-insert within tx: bulk insertion
// at or above BulkInsertThreshold, sequential insertion below it.
func (s *Store) appendInTx(ctx context.Context, tx pgx.Tx, tenant dcb.Tenant, events []dcb.EventToPersist, cfg appendConfigView, span telemetry.Span) ([]dcb.EventEnvelope, error) {
	rows, err := toInsertRows(tenant, events, span)
	if err != nil {
		return nil, err
	}

	if len(events) < s.config.BulkInsertThreshold {
		return s.insertSequential(ctx, tx, tenant, rows, cfg.Boundary(), cfg.ExpectedLastEventID())
	}

	if _, err := tx.Exec(ctx, "SAVEPOINT bulk_attempt"); err != nil {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
			Resource:        "database",
		}
	}

	var envelopes []dcb.EventEnvelope
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			var innerErr error
			if attempt == 1 {
				envelopes, innerErr = s.insertBulk(ctx, tx, tenant, rows, cfg.Boundary(), cfg.ExpectedLastEventID())
			} else {
				envelopes, innerErr = s.insertSequential(ctx, tx, tenant, rows, cfg.Boundary(), cfg.ExpectedLastEventID())
			}
			return innerErr
		},
		retry.Attempts(2),
		retry.RetryIf(isRetryableBulkError),
		retry.OnRetry(func(uint, error) {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT bulk_attempt")
		}),
	)
	if err != nil {
		var retryErr retry.Error
		if errors.As(err, &retryErr) && len(retryErr) > 0 {
			return nil, retryErr[len(retryErr)-1]
		}
		return nil, err
	}
	return envelopes, nil
}

// isRetryableBulkError reports whether a bulk-insert failure should trigger
// the single sequential-mode retry: concurrency conflicts and duplicate ids
// are authoritative outcomes, never retried.
func isRetryableBulkError(err error) bool {
	if dcb.IsConcurrencyError(err) || dcb.IsDuplicateIDError(err) {
		return false
	}
	return true
}

type insertRow struct {
	id        uuid.UUID
	eventType string
	tags      []string
	data      []byte
	metadata  []byte
	createdAt time.Time
}

// toInsertRows validates and flattens events into their wire representation,
// injecting trace context into each event's metadata.
func toInsertRows(tenant dcb.Tenant, events []dcb.EventToPersist, span telemetry.Span) ([]insertRow, error) {
	rows := make([]insertRow, len(events))
	for i, e := range events {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, &dcb.ValidationError{
				EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
				Field:           "payload",
			}
		}

		metadata := make(map[string]string, len(e.Metadata)+2)
		for k, v := range e.Metadata {
			metadata[k] = v
		}
		span.InjectTraceContext(metadata)
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return nil, &dcb.ValidationError{
				EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
				Field:           "metadata",
			}
		}

		tags := make([]string, len(e.Tags))
		for j, t := range e.Tags {
			tags[j] = t.String()
		}

		rows[i] = insertRow{
			id:        e.ID,
			eventType: string(e.Type),
			tags:      tags,
			data:      data,
			metadata:  metadataJSON,
			createdAt: e.Created,
		}
		span.RecordEvent(e.ID.String(), string(e.Type), tags)
	}
	return rows, nil
}

// insertBulk issues a single atomic WITH ... SELECT statement covering the
// whole batch.
func (s *Store) insertBulk(ctx context.Context, tx pgx.Tx, tenant dcb.Tenant, rows []insertRow, boundary *dcb.StreamQuery, expectedLastEventID *string) ([]dcb.EventEnvelope, error) {
	predicate, predicateArgs, next := checkPredicate(s.table(), tenant, boundary, expectedLastEventID, 1)

	valueTuples := make([]string, len(rows))
	args := append([]any{}, predicateArgs...)
	for i, r := range rows {
		valueTuples[i] = fmt.Sprintf("($%d, $%d, $%d, $%d::jsonb, $%d::text[], $%d, $%d::jsonb)",
			next, next+1, next+2, next+3, next+4, next+5, next+6)
		args = append(args, r.id, string(tenant), r.eventType, string(r.data), r.tags, r.createdAt, string(r.metadata))
		next += 7
	}

	sqlQuery := fmt.Sprintf(`
WITH consistency_check AS (
	SELECT EXISTS (SELECT 1 FROM %[2]s WHERE %[1]s) AS has_conflicts
),
inserted AS (
	INSERT INTO %[2]s (id, tenant_id, event_type, data, tags, created_at, metadata)
	SELECT * FROM (VALUES %[3]s) AS v(id, tenant_id, event_type, data, tags, created_at, metadata)
	WHERE (SELECT has_conflicts FROM consistency_check) = FALSE
	RETURNING position
)
SELECT position, (SELECT has_conflicts FROM consistency_check) AS conflicts
FROM inserted
UNION ALL
SELECT NULL, (SELECT has_conflicts FROM consistency_check)
WHERE (SELECT has_conflicts FROM consistency_check)
ORDER BY 1 NULLS LAST`,
		predicate, s.table(), joinValues(valueTuples))

	return s.executeCheckAndInsert(ctx, tx, tenant, rows, sqlQuery, args)
}

// insertSequential inserts rows one at a time. Only the first row in the
// transaction is checked against the boundary; subsequent rows in the same
// transaction are inserted unconditionally, because the first insert is
// already inside whatever window the boundary was guarding.
func (s *Store) insertSequential(ctx context.Context, tx pgx.Tx, tenant dcb.Tenant, rows []insertRow, boundary *dcb.StreamQuery, expectedLastEventID *string) ([]dcb.EventEnvelope, error) {
	envelopes := make([]dcb.EventEnvelope, 0, len(rows))
	for i, r := range rows {
		var b *dcb.StreamQuery
		var expected *string
		if i == 0 {
			b, expected = boundary, expectedLastEventID
		}

		predicate, predicateArgs, next := checkPredicate(s.table(), tenant, b, expected, 1)
		sqlQuery := fmt.Sprintf(`
WITH consistency_check AS (
	SELECT EXISTS (SELECT 1 FROM %[2]s WHERE %[1]s) AS has_conflicts
),
inserted AS (
	INSERT INTO %[2]s (id, tenant_id, event_type, data, tags, created_at, metadata)
	SELECT $%[3]d, $%[4]d, $%[5]d, $%[6]d::jsonb, $%[7]d::text[], $%[8]d, $%[9]d::jsonb
	WHERE (SELECT has_conflicts FROM consistency_check) = FALSE
	RETURNING position
)
SELECT position, (SELECT has_conflicts FROM consistency_check) AS conflicts
FROM inserted
UNION ALL
SELECT NULL, (SELECT has_conflicts FROM consistency_check)
WHERE (SELECT has_conflicts FROM consistency_check)`,
			predicate, s.table(), next, next+1, next+2, next+3, next+4, next+5, next+6)

		args := append([]any{}, predicateArgs...)
		args = append(args, r.id, string(tenant), r.eventType, string(r.data), r.tags, r.createdAt, string(r.metadata))

		env, err := s.executeCheckAndInsert(ctx, tx, tenant, rows[i:i+1], sqlQuery, args)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env...)
	}
	return envelopes, nil
}

// checkPredicate renders the boundary check, or the always-false "no
// boundary" predicate when boundary is nil (unconditional append). table is
// the schema-qualified, already sanitized events table identifier.
func checkPredicate(table string, tenant dcb.Tenant, boundary *dcb.StreamQuery, expectedLastEventID *string, argIndex int) (string, []any, int) {
	if boundary == nil {
		return "FALSE", nil, argIndex
	}
	return consistencyPredicate(table, tenant, *boundary, expectedLastEventID, argIndex)
}

// executeCheckAndInsert runs sqlQuery, which is expected to return one row
// per inserted event (ordered by position) plus, on conflict, a single row
// flagging it.
func (s *Store) executeCheckAndInsert(ctx context.Context, tx pgx.Tx, tenant dcb.Tenant, rows []insertRow, sqlQuery string, args []any) ([]dcb.EventEnvelope, error) {
	result, err := tx.Query(ctx, sqlQuery, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, &dcb.DuplicateIDError{
				EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
				ID:              duplicateIDFromConstraint(rows),
			}
		}
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
			Resource:        "database",
		}
	}
	defer result.Close()

	type scanned struct {
		position *int64
		conflict bool
	}
	var scannedRows []scanned
	for result.Next() {
		var sr scanned
		if err := result.Scan(&sr.position, &sr.conflict); err != nil {
			return nil, &dcb.ResourceError{
				EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
				Resource:        "database",
			}
		}
		scannedRows = append(scannedRows, sr)
	}
	if err := result.Err(); err != nil {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: err},
			Resource:        "database",
		}
	}

	if len(scannedRows) == 0 {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: errors.New("append produced no result rows")},
			Resource:        "database",
		}
	}
	if scannedRows[0].conflict {
		return nil, &dcb.ConcurrencyError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: errors.New("append condition violated: matching events already exist")},
			Tenant:          tenant,
		}
	}

	positions := make([]int64, 0, len(scannedRows))
	for _, sr := range scannedRows {
		if sr.position != nil {
			positions = append(positions, *sr.position)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	if len(positions) != len(rows) {
		return nil, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Append", Err: fmt.Errorf("expected %d inserted positions, got %d", len(rows), len(positions))},
			Resource:        "database",
		}
	}

	envelopes := make([]dcb.EventEnvelope, len(rows))
	for i, r := range rows {
		var metadata map[string]string
		_ = json.Unmarshal(r.metadata, &metadata)
		md := make(map[string]string, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md[dcb.PositionMetadataKey] = strconv.FormatInt(positions[i], 10)
		envelopes[i] = dcb.EventEnvelope{
			ID:       r.id,
			Type:     dcb.EventType(r.eventType),
			Payload:  json.RawMessage(r.data),
			Metadata: md,
			Created:  r.createdAt,
		}
	}
	return envelopes, nil
}

// duplicateIDFromConstraint is a best-effort guess at which id in the batch
// collided; Postgres's error detail does not reliably name the row when the
// violation originates from a multi-row INSERT ... SELECT.
func duplicateIDFromConstraint(rows []insertRow) string {
	if len(rows) == 1 {
		return rows[0].id.String()
	}
	return ""
}

func joinValues(tuples []string) string {
	out := tuples[0]
	for _, t := range tuples[1:] {
		out += ", " + t
	}
	return out
}

// scanStoredEvent reads one row from a Stream query into a dcb.StoredEvent.
func scanStoredEvent(rows pgx.Rows, tenant dcb.Tenant) (dcb.StoredEvent, error) {
	var (
		id          pgtype.UUID
		eventType   string
		tags        []string
		data        []byte
		metadataRaw []byte
		createdAt   time.Time
		position    int64
	)
	if err := rows.Scan(&id, &eventType, &tags, &data, &metadataRaw, &createdAt, &position); err != nil {
		return dcb.StoredEvent{}, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Stream", Err: err},
			Resource:        "database",
		}
	}

	if !id.Valid {
		return dcb.StoredEvent{}, &dcb.ResourceError{
			EventStoreError: dcb.EventStoreError{Op: "Stream", Err: fmt.Errorf("events.id is NULL")},
			Resource:        "database",
		}
	}
	parsedID := uuid.UUID(id.Bytes)

	eventTags := make([]dcb.EventTag, 0, len(tags))
	for _, t := range tags {
		tag, err := dcb.ParseEventTag(t)
		if err != nil {
			continue
		}
		eventTags = append(eventTags, tag)
	}

	var metadata map[string]string
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &metadata)
	}

	return dcb.StoredEvent{
		Position: position,
		ID:       parsedID,
		Tenant:   tenant,
		Type:     dcb.EventType(eventType),
		Tags:     eventTags,
		Payload:  json.RawMessage(data),
		Metadata: metadata,
		Created:  createdAt,
	}, nil
}

// appendConfigView is the subset of the dcb package's resolved append
// configuration this package needs; it exists so appendInTx doesn't import
// the unexported config type directly.
type appendConfigView interface {
	Boundary() *dcb.StreamQuery
	ExpectedLastEventID() *string
}
