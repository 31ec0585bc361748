package migration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyApplied is returned when applying a unit the runner has already recorded.
var ErrAlreadyApplied = errors.New("migration already applied")

// ErrNotApplied is returned when reverting a unit the runner has no record of.
var ErrNotApplied = errors.New("migration not applied")

// Runner applies units in version order and records them in schema_migrations.
// Each unit runs in its own transaction together with its bookkeeping row.
type Runner struct {
	pool   *pgxpool.Pool
	lockID int64 // PostgreSQL advisory lock ID
	log    logrus.FieldLogger
	lock   *pgxpool.Conn
}

// NewRunner creates a new migration runner.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{
		pool:   pool,
		lockID: 1234567890, // Default lock ID
		log:    logrus.StandardLogger(),
	}
}

// WithLockID sets a custom advisory lock ID.
func (r *Runner) WithLockID(lockID int64) *Runner {
	r.lockID = lockID
	return r
}

// WithLogger sets the logger used for progress events.
func (r *Runner) WithLogger(log logrus.FieldLogger) *Runner {
	r.log = log
	return r
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (r *Runner) Initialize(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMPTZ,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// Lock acquires an advisory lock so that no two runners migrate at once.
// The lock is session scoped, so it is taken on a dedicated connection
// that stays checked out until Unlock.
func (r *Runner) Lock(ctx context.Context) error {
	if r.lock != nil {
		return fmt.Errorf("migration lock already held")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration lock: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", r.lockID); err != nil {
		conn.Release()
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	r.lock = conn
	r.log.WithField("lock_id", r.lockID).Debug("acquired migration lock")
	return nil
}

// TryLock attempts to acquire the advisory lock without blocking.
func (r *Runner) TryLock(ctx context.Context) (bool, error) {
	if r.lock != nil {
		return true, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection for migration lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", r.lockID).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("failed to try migration lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	r.lock = conn
	return true, nil
}

// Unlock releases the advisory lock.
func (r *Runner) Unlock(ctx context.Context) error {
	if r.lock == nil {
		return fmt.Errorf("lock was not held")
	}
	defer func() {
		r.lock.Release()
		r.lock = nil
	}()

	var released bool
	if err := r.lock.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", r.lockID).Scan(&released); err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	if !released {
		return fmt.Errorf("lock was not held")
	}

	r.log.WithField("lock_id", r.lockID).Debug("released migration lock")
	return nil
}

// Records returns every row of the tracking table ordered by version.
func (r *Runner) Records(ctx context.Context) ([]MigrationRecord, error) {
	query := `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		ORDER BY version ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var record MigrationRecord
		err := rows.Scan(&record.Version, &record.Name, &record.Status, &record.AppliedAt, &record.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// AppliedVersions returns the set of applied versions.
func (r *Runner) AppliedVersions(ctx context.Context) (map[string]bool, error) {
	records, err := r.Records(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	for _, record := range records {
		if record.Status == StatusApplied {
			applied[record.Version] = true
		}
	}
	return applied, nil
}

// IsApplied checks if a specific unit has been applied.
func (r *Runner) IsApplied(ctx context.Context, version string) (bool, error) {
	return isApplied(ctx, r.pool, version)
}

func isApplied(ctx context.Context, db DBTX, version string) (bool, error) {
	var count int
	err := db.QueryRow(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = $1 AND status = 'applied'",
		version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return count > 0, nil
}

// Apply applies one unit and records it, all in one transaction. On failure
// the transaction is rolled back and the failure is recorded separately.
func (r *Runner) Apply(ctx context.Context, unit Unit) error {
	log := r.log.WithFields(logrus.Fields{"version": unit.Version(), "name": unit.Name()})
	start := time.Now()

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		applied, err := isApplied(ctx, tx, unit.Version())
		if err != nil {
			return err
		}
		if applied {
			return fmt.Errorf("%w: %s", ErrAlreadyApplied, unit.Version())
		}

		if err := unit.Apply(ctx, NewPostgresHandle(tx)); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, status, applied_at, error)
			VALUES ($1, $2, 'applied', $3, NULL)
			ON CONFLICT (version) DO UPDATE
			SET status = 'applied', applied_at = EXCLUDED.applied_at, error = NULL`,
			unit.Version(), unit.Name(), time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyApplied) {
			r.recordFailure(ctx, unit, err)
		}
		log.WithError(err).Error("apply failed")
		return &runtime.MigrationError{Version: unit.Version(), Message: "apply failed", Err: err}
	}

	log.WithField("duration", time.Since(start)).Info("applied")
	return nil
}

// Revert reverts one unit and removes its record, all in one transaction.
func (r *Runner) Revert(ctx context.Context, unit Unit) error {
	log := r.log.WithFields(logrus.Fields{"version": unit.Version(), "name": unit.Name()})
	start := time.Now()

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		applied, err := isApplied(ctx, tx, unit.Version())
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: %s", ErrNotApplied, unit.Version())
		}

		if err := unit.Revert(ctx, NewPostgresHandle(tx)); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", unit.Version()); err != nil {
			return fmt.Errorf("failed to delete migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("revert failed")
		return &runtime.MigrationError{Version: unit.Version(), Message: "revert failed", Err: err}
	}

	log.WithField("duration", time.Since(start)).Info("reverted")
	return nil
}

// recordFailure stores the failure of a unit outside the rolled-back transaction.
func (r *Runner) recordFailure(ctx context.Context, unit Unit, cause error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, status, error)
		VALUES ($1, $2, 'failed', $3)
		ON CONFLICT (version) DO UPDATE
		SET status = 'failed', error = EXCLUDED.error`,
		unit.Version(), unit.Name(), cause.Error(),
	)
	if err != nil {
		r.log.WithError(err).WithField("version", unit.Version()).Warn("failed to record migration failure")
	}
}

// Pending returns the units not yet applied, in version order.
func (r *Runner) Pending(ctx context.Context, units []Unit) ([]Unit, error) {
	applied, err := r.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Unit
	for _, unit := range SortUnits(units) {
		if !applied[unit.Version()] {
			pending = append(pending, unit)
		}
	}
	return pending, nil
}

// Up applies pending units in version order. steps <= 0 applies all of them.
// It stops at the first failure.
func (r *Runner) Up(ctx context.Context, units []Unit, steps int) ([]Unit, error) {
	pending, err := r.Pending(ctx, units)
	if err != nil {
		return nil, err
	}
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}

	var done []Unit
	for _, unit := range pending {
		if err := r.Apply(ctx, unit); err != nil {
			return done, err
		}
		done = append(done, unit)
	}
	return done, nil
}

// Down reverts the most recently applied units, newest first. steps <= 0 reverts one.
func (r *Runner) Down(ctx context.Context, units []Unit, steps int) ([]Unit, error) {
	if steps <= 0 {
		steps = 1
	}

	applied, err := r.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	sorted := SortUnits(units)
	slices.Reverse(sorted)

	var done []Unit
	for _, unit := range sorted {
		if len(done) == steps {
			break
		}
		if !applied[unit.Version()] {
			continue
		}
		if err := r.Revert(ctx, unit); err != nil {
			return done, err
		}
		done = append(done, unit)
	}
	return done, nil
}

// Status returns the status of every unit, in version order.
func (r *Runner) Status(ctx context.Context, units []Unit) ([]MigrationRecord, error) {
	all, err := r.Records(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(all))
	for _, record := range all {
		byVersion[record.Version] = record
	}

	var records []MigrationRecord
	for _, unit := range SortUnits(units) {
		if record, ok := byVersion[unit.Version()]; ok {
			records = append(records, record)
			continue
		}
		records = append(records, MigrationRecord{
			Version: unit.Version(),
			Name:    unit.Name(),
			Status:  StatusPending,
		})
	}
	return records, nil
}

// Validate checks that every recorded version has a known unit.
func (r *Runner) Validate(ctx context.Context, units []Unit) error {
	records, err := r.Records(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(units))
	for _, unit := range units {
		known[unit.Version()] = true
	}

	var missing []string
	for _, record := range records {
		if !known[record.Version] {
			missing = append(missing, record.Version)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unknown migration versions in schema_migrations: %v", missing)
	}
	return nil
}

// SortUnits returns a copy of units ordered by version.
func SortUnits(units []Unit) []Unit {
	sorted := slices.Clone(units)
	slices.SortFunc(sorted, func(a, b Unit) int {
		switch {
		case a.Version() < b.Version():
			return -1
		case a.Version() > b.Version():
			return 1
		}
		return 0
	})
	return sorted
}
