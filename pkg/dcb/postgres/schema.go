package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DDL returns the statements that create schema (if it does not already
// exist) and, within it, the events table and its seven supporting indexes.
// Migration execution itself is the named out-of-scope collaborator's job;
// this only renders the SQL for that collaborator to run.
func DDL(schema string) string {
	table := pgx.Identifier{schema, "events"}.Sanitize()
	schemaIdent := pgx.Identifier{schema}.Sanitize()

	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[2]s (
	position     bigserial PRIMARY KEY,
	id           uuid UNIQUE NOT NULL,
	tenant_id    varchar NOT NULL,
	event_type   text NOT NULL,
	data         jsonb NOT NULL,
	tags         text[] NOT NULL,
	created_at   timestamptz NOT NULL,
	metadata     jsonb NOT NULL
);

CREATE INDEX IF NOT EXISTS events_tenant_position_idx
	ON %[2]s (tenant_id, position DESC);

CREATE INDEX IF NOT EXISTS events_tags_gin_idx
	ON %[2]s USING GIN (tags);

CREATE INDEX IF NOT EXISTS events_tenant_covering_idx
	ON %[2]s (tenant_id) INCLUDE (tags, event_type, position);

CREATE INDEX IF NOT EXISTS events_tenant_type_idx
	ON %[2]s (tenant_id, event_type) INCLUDE (position, tags);

CREATE INDEX IF NOT EXISTS events_tenant_boundary_idx
	ON %[2]s (tenant_id, position) WHERE position > 0;

CREATE INDEX IF NOT EXISTS events_tenant_created_idx
	ON %[2]s (tenant_id, created_at);

CREATE INDEX IF NOT EXISTS events_global_order_idx
	ON %[2]s (position) INCLUDE (id, tenant_id, event_type, tags, created_at);
`, schemaIdent, table)
}
