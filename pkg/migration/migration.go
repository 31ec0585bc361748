// Package migration applies and reverts schema change units against PostgreSQL.
package migration

import (
	"context"
	"time"

	"github.com/deliverus/deliverus-schema/pkg/schema"
)

// Unit is one reversible schema change. Apply and Revert are exact inverses
// at the schema level: Revert removes everything Apply created and nothing else.
//
// A Unit keeps no bookkeeping of its own. Running it at most once, in order,
// and recording that it ran is the caller's job (see Runner).
type Unit interface {
	Version() string // Sortable version, e.g. "20210629195916"
	Name() string    // Human name, e.g. "create-restaurant"
	Apply(ctx context.Context, h SchemaHandle) error
	Revert(ctx context.Context, h SchemaHandle) error
}

// SchemaHandle executes data-definition operations against one schema.
//
// Errors wrap the sentinels in package runtime: ErrDependencyMissing,
// ErrAlreadyExists, ErrNotFound and ErrConstraintViolation.
type SchemaHandle interface {
	// CreateTable creates the table and the enum types it owns.
	CreateTable(ctx context.Context, table *schema.TableMetadata) error
	// DropTable drops the table and the enum types it owns.
	DropTable(ctx context.Context, table *schema.TableMetadata) error
	// TableExists reports whether a table with the given name exists.
	TableExists(ctx context.Context, name string) (bool, error)
}

// MigrationStatus represents the status of a migration.
type MigrationStatus string

const (
	// StatusPending means the migration has not been applied.
	StatusPending MigrationStatus = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied MigrationStatus = "applied"
	// StatusFailed means the last attempt to apply the migration failed.
	StatusFailed MigrationStatus = "failed"
)

// MigrationRecord represents a migration in the tracking table.
type MigrationRecord struct {
	Version   string          `json:"version"`
	Name      string          `json:"name"`
	Status    MigrationStatus `json:"status"`
	AppliedAt *time.Time      `json:"appliedAt,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

// TableDiff represents the drift between a declared table and the live one.
type TableDiff struct {
	TableName          string
	ColumnsAdded       []schema.ColumnMetadata     // Declared but missing from the database
	ColumnsDropped     []string                    // Present in the database but not declared
	ColumnsModified    []ColumnDiff                // Present in both with different shape
	ForeignKeysAdded   []schema.ForeignKeyMetadata // Declared but missing
	ForeignKeysDropped []schema.ForeignKeyMetadata // Present but not declared
	EnumTypesModified  []EnumTypeDiff
	PrimaryKeyChanged  *PrimaryKeyChange
}

// ColumnDiff represents changes to a single column.
type ColumnDiff struct {
	ColumnName     string
	Declared       schema.ColumnMetadata
	Live           schema.ColumnMetadata
	TypeChanged    bool
	NullChanged    bool
	DefaultChanged bool
}

// PrimaryKeyChange represents a change to the primary key.
type PrimaryKeyChange struct {
	Declared []string
	Live     []string
}

// EnumTypeDiff represents an enum type whose literals differ.
type EnumTypeDiff struct {
	Name     string
	Declared []string
	Live     []string
}

// HasChanges returns true if the table has drifted.
func (t TableDiff) HasChanges() bool {
	return len(t.ColumnsAdded) > 0 ||
		len(t.ColumnsDropped) > 0 ||
		len(t.ColumnsModified) > 0 ||
		len(t.ForeignKeysAdded) > 0 ||
		len(t.ForeignKeysDropped) > 0 ||
		len(t.EnumTypesModified) > 0 ||
		t.PrimaryKeyChanged != nil
}

// GenerateVersion generates a timestamp-based version string.
// Format: YYYYMMDDHHmmss (e.g., "20240101120000")
func GenerateVersion() string {
	return time.Now().Format("20060102150405")
}
