package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"go-dcb/pkg/dcb"
	"go-dcb/pkg/dcb/dcbtest"
	"go-dcb/pkg/dcb/postgres"
)

// newTestPool starts a disposable Postgres container, applies the schema,
// and returns a pool pointed at it. The container is torn down when the
// test (or TestMain-scoped parent) finishes.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres-backed conformance suite in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:17.5-alpine",
		tcpostgres.WithDatabase("dcb"),
		tcpostgres.WithUsername("dcb"),
		tcpostgres.WithPassword("dcb"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, postgres.DDL(postgres.DefaultSchema))
	require.NoError(t, err)

	return pool
}

func TestStoreConformance(t *testing.T) {
	pool := newTestPool(t)

	dcbtest.Run(t, func(t *testing.T) dcb.Store {
		t.Helper()
		store, err := postgres.New(pool, postgres.PostgresConfig{ConnectionString: "unused-pool-already-open"})
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = pool.Exec(context.Background(), "TRUNCATE TABLE "+postgres.DefaultSchema+".events RESTART IDENTITY CASCADE")
		})
		return store
	})
}

func TestAppendUsesBulkPathAboveThreshold(t *testing.T) {
	pool := newTestPool(t)
	store, err := postgres.New(pool, postgres.PostgresConfig{
		ConnectionString:    "unused-pool-already-open",
		BulkInsertThreshold: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "TRUNCATE TABLE "+postgres.DefaultSchema+".events RESTART IDENTITY CASCADE")
	})

	tenant, err := dcb.NewTenant("bulk-threshold")
	require.NoError(t, err)
	eventType, err := dcb.NewEventType("order-created")
	require.NoError(t, err)
	tag, err := dcb.NewEventTag("order", "1")
	require.NoError(t, err)

	events := make([]dcb.EventToPersist, 4)
	for i := range events {
		e, err := dcb.NewEventToPersist(eventType, []dcb.EventTag{tag}, []byte(`{}`))
		require.NoError(t, err)
		events[i] = e
	}

	envelopes, err := store.Append(context.Background(), tenant, events)
	require.NoError(t, err)
	require.Len(t, envelopes, 4)

	got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(tag))
	require.NoError(t, err)
	require.Len(t, got, 4)
}
