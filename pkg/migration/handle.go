package migration

import (
	"context"
	"fmt"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/deliverus/deliverus-schema/pkg/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool and *pgx.Conn implement it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresHandle is a SchemaHandle backed by PostgreSQL.
//
// Bind it to a pgx.Tx to get all-or-nothing behavior: PostgreSQL DDL is
// transactional, so a failed CreateTable leaves nothing behind once the
// transaction is rolled back. ApplyUnit and RevertUnit do exactly that.
type PostgresHandle struct {
	db      DBTX
	planner *Planner
}

// NewPostgresHandle creates a handle that executes statements on db.
func NewPostgresHandle(db DBTX) *PostgresHandle {
	return &PostgresHandle{
		db:      db,
		planner: NewPlanner(),
	}
}

// TableExists reports whether a table exists in the current schema.
func (h *PostgresHandle) TableExists(ctx context.Context, name string) (bool, error) {
	return tableExists(ctx, h.db, name)
}

// CreateTable creates the table and the enum types it owns.
func (h *PostgresHandle) CreateTable(ctx context.Context, table *schema.TableMetadata) error {
	const op = "create table"

	if err := schema.Validate(table); err != nil {
		return &runtime.SchemaError{Op: op, Table: tableName(table), Err: err}
	}

	for _, ref := range table.ReferencedTables() {
		exists, err := h.TableExists(ctx, ref)
		if err != nil {
			return &runtime.SchemaError{Op: op, Table: table.Name, Err: err}
		}
		if !exists {
			return &runtime.SchemaError{
				Op:    op,
				Table: table.Name,
				Err:   fmt.Errorf("%w: referenced table %q does not exist", runtime.ErrDependencyMissing, ref),
			}
		}
	}

	exists, err := h.TableExists(ctx, table.Name)
	if err != nil {
		return &runtime.SchemaError{Op: op, Table: table.Name, Err: err}
	}
	if exists {
		return &runtime.SchemaError{Op: op, Table: table.Name, Err: runtime.ErrAlreadyExists}
	}

	up, _ := h.planner.Plan(table)
	return h.exec(ctx, op, table.Name, up)
}

// DropTable drops the table and the enum types it owns.
func (h *PostgresHandle) DropTable(ctx context.Context, table *schema.TableMetadata) error {
	const op = "drop table"

	exists, err := h.TableExists(ctx, table.Name)
	if err != nil {
		return &runtime.SchemaError{Op: op, Table: table.Name, Err: err}
	}
	if !exists {
		return &runtime.SchemaError{Op: op, Table: table.Name, Err: runtime.ErrNotFound}
	}

	_, down := h.planner.Plan(table)
	return h.exec(ctx, op, table.Name, down)
}

func (h *PostgresHandle) exec(ctx context.Context, op, table string, statements []string) error {
	for _, stmt := range statements {
		if _, err := h.db.Exec(ctx, stmt); err != nil {
			return &runtime.SchemaError{
				Op:    op,
				Table: table,
				Err:   runtime.Classify(&runtime.QueryError{Query: stmt, Err: err}),
			}
		}
	}
	return nil
}

// tableExists checks information_schema for a base table in the current schema.
func tableExists(ctx context.Context, db DBTX, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			  AND table_type = 'BASE TABLE'
			  AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return exists, nil
}

func tableName(table *schema.TableMetadata) string {
	if table == nil {
		return ""
	}
	return table.Name
}

// ApplyUnit applies a single unit inside one transaction.
func ApplyUnit(ctx context.Context, db TxBeginner, unit Unit) error {
	return inTx(ctx, db, func(tx pgx.Tx) error {
		return unit.Apply(ctx, NewPostgresHandle(tx))
	})
}

// RevertUnit reverts a single unit inside one transaction.
func RevertUnit(ctx context.Context, db TxBeginner, unit Unit) error {
	return inTx(ctx, db, func(tx pgx.Tx) error {
		return unit.Revert(ctx, NewPostgresHandle(tx))
	})
}

// inTx executes fn within a transaction, rolling back on any error.
func inTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", runtime.Classify(err))
	}

	return nil
}
