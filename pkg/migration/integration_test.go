//go:build integration

package migration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/deliverus/deliverus-schema/pkg/schema"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and returns a pool connected to it.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// createReferencedTables creates the tables Restaurants points at.
func createReferencedTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		CREATE TABLE "Users" ("id" serial PRIMARY KEY, "email" varchar(255) NOT NULL);
		CREATE TABLE "RestaurantCategories" ("id" serial PRIMARY KEY, "name" varchar(255) NOT NULL);
	`)
	require.NoError(t, err)
}

func enumExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	exists, err := NewIntrospector(pool).EnumTypeExists(context.Background(), name)
	require.NoError(t, err)
	return exists
}

func TestIntegration_ApplyCreatesDeclaredShape(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)

	declared := restaurantsFixture()
	require.NoError(t, ApplyUnit(ctx, pool, tableUnit{version: "1", table: declared}))

	live, err := NewIntrospector(pool).IntrospectTable(ctx, "Restaurants")
	require.NoError(t, err)

	assert.Equal(t, declared.ColumnNames(), live.ColumnNames())
	diff := NewDiffer().CompareTable(declared, live)
	assert.False(t, diff.HasChanges(), "drift after apply: %v", diff.Describe())

	values, err := NewIntrospector(pool).GetEnumValues(ctx, "enum_Restaurants_status")
	require.NoError(t, err)
	assert.Equal(t, []string{"online", "offline", "closed", "temporarily closed"}, values)
}

func TestIntegration_DependencyMissing(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	err := ApplyUnit(ctx, pool, tableUnit{version: "1", table: restaurantsFixture()})

	require.ErrorIs(t, err, runtime.ErrDependencyMissing)
	exists, err := tableExists(ctx, pool, "Restaurants")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, enumExists(t, pool, "enum_Restaurants_status"))
}

func TestIntegration_AlreadyExistsLeavesTableUntouched(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)

	_, err := pool.Exec(ctx, `CREATE TABLE "Restaurants" ("legacy" text)`)
	require.NoError(t, err)

	err = ApplyUnit(ctx, pool, tableUnit{version: "1", table: restaurantsFixture()})
	require.ErrorIs(t, err, runtime.ErrAlreadyExists)

	live, err := NewIntrospector(pool).IntrospectTable(ctx, "Restaurants")
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, live.ColumnNames())
	assert.False(t, enumExists(t, pool, "enum_Restaurants_status"))
}

func TestIntegration_RevertNotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	err := RevertUnit(ctx, pool, tableUnit{version: "1", table: restaurantsFixture()})

	require.ErrorIs(t, err, runtime.ErrNotFound)
}

func TestIntegration_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)
	unit := tableUnit{version: "1", table: restaurantsFixture()}

	require.NoError(t, ApplyUnit(ctx, pool, unit))
	require.NoError(t, RevertUnit(ctx, pool, unit))

	exists, err := tableExists(ctx, pool, "Restaurants")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, enumExists(t, pool, "enum_Restaurants_status"))

	// Applying again works because revert removed everything apply created
	require.NoError(t, ApplyUnit(ctx, pool, unit))
}

func TestIntegration_FailedApplyLeavesNothing(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)

	// The enum is created before the table; the table then fails on the
	// unknown referenced column.
	table := restaurantsFixture()
	table.ForeignKeys[1].ReferencedColumns = []string{"uuid"}

	err := ApplyUnit(ctx, pool, tableUnit{version: "1", table: table})
	require.Error(t, err)

	var schemaErr *runtime.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "create table", schemaErr.Op)

	exists, err := tableExists(ctx, pool, "Restaurants")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, enumExists(t, pool, "enum_Restaurants_status"))
}

func TestIntegration_ForeignKeyActionsIntrospected(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)
	require.NoError(t, ApplyUnit(ctx, pool, tableUnit{version: "1", table: restaurantsFixture()}))

	live, err := NewIntrospector(pool).IntrospectTable(ctx, "Restaurants")
	require.NoError(t, err)

	actions := make(map[string][2]schema.ReferenceAction)
	for _, fk := range live.ForeignKeys {
		actions[fk.ReferencedTable] = [2]schema.ReferenceAction{fk.OnUpdate, fk.OnDelete}
	}
	assert.Equal(t, [2]schema.ReferenceAction{schema.Cascade, schema.SetNull}, actions["RestaurantCategories"])
	assert.Equal(t, [2]schema.ReferenceAction{schema.Cascade, schema.Cascade}, actions["Users"])
}

func TestIntegration_RunnerUpStatusDown(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)

	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	runner := NewRunner(pool).WithLogger(log)
	require.NoError(t, runner.Initialize(ctx))
	require.NoError(t, runner.Initialize(ctx), "initialize must be repeatable")

	units := []Unit{tableUnit{version: "20210629195916", table: restaurantsFixture()}}

	status, err := runner.Status(ctx, units)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, StatusPending, status[0].Status)

	require.NoError(t, runner.Lock(ctx))
	applied, err := runner.Up(ctx, units, 0)
	require.NoError(t, err)
	assert.Len(t, applied, 1)
	require.NoError(t, runner.Unlock(ctx))

	status, err = runner.Status(ctx, units)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, status[0].Status)
	assert.NotNil(t, status[0].AppliedAt)

	// Nothing left to apply
	applied, err = runner.Up(ctx, units, 0)
	require.NoError(t, err)
	assert.Empty(t, applied)

	// Applying the same unit directly is refused
	assert.ErrorIs(t, runner.Apply(ctx, units[0]), ErrAlreadyApplied)

	reverted, err := runner.Down(ctx, units, 1)
	require.NoError(t, err)
	assert.Len(t, reverted, 1)

	ok, err := runner.IsApplied(ctx, "20210629195916")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := tableExists(ctx, pool, "Restaurants")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIntegration_RunnerRecordsFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	runner := NewRunner(pool)
	require.NoError(t, runner.Initialize(ctx))

	units := []Unit{tableUnit{version: "20210629195916", table: restaurantsFixture()}}
	_, err := runner.Up(ctx, units, 0)
	require.ErrorIs(t, err, runtime.ErrDependencyMissing)

	status, err := runner.Status(ctx, units)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status[0].Status)
	require.NotNil(t, status[0].Error)
	assert.Contains(t, *status[0].Error, "RestaurantCategories")

	// Once the dependency exists the failed unit applies
	createReferencedTables(t, pool)
	applied, err := runner.Up(ctx, units, 0)
	require.NoError(t, err)
	assert.Len(t, applied, 1)

	status, err = runner.Status(ctx, units)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, status[0].Status)
	assert.Nil(t, status[0].Error)
}

func TestIntegration_RunnerLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	first := NewRunner(pool)
	second := NewRunner(pool)

	require.NoError(t, first.Lock(ctx))

	ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := second.Lock(ctx); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second runner acquired the lock while the first held it")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, first.Unlock(ctx))
	wg.Wait()

	select {
	case <-acquired:
	default:
		t.Fatal("second runner did not acquire the lock after release")
	}
	require.NoError(t, second.Unlock(ctx))
}

func TestIntegration_RunnerValidate(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	createReferencedTables(t, pool)

	runner := NewRunner(pool)
	require.NoError(t, runner.Initialize(ctx))

	units := []Unit{tableUnit{version: "20210629195916", table: restaurantsFixture()}}
	_, err := runner.Up(ctx, units, 0)
	require.NoError(t, err)

	assert.NoError(t, runner.Validate(ctx, units))
	assert.Error(t, runner.Validate(ctx, nil))
}
