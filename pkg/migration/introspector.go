package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/deliverus/deliverus-schema/pkg/schema"
	"github.com/jackc/pgx/v5"
)

// Introspector inspects the live shape of tables.
type Introspector struct {
	db DBTX
}

// NewIntrospector creates a new database introspector.
func NewIntrospector(db DBTX) *Introspector {
	return &Introspector{db: db}
}

// TableExists reports whether a table exists in the current schema.
func (i *Introspector) TableExists(ctx context.Context, name string) (bool, error) {
	return tableExists(ctx, i.db, name)
}

// IntrospectTable reads a table's columns, primary key, foreign keys and the
// enum types its columns use. Returns runtime.ErrNotFound if the table is absent.
func (i *Introspector) IntrospectTable(ctx context.Context, tableName string) (*schema.TableMetadata, error) {
	exists, err := i.TableExists(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &runtime.SchemaError{Op: "introspect table", Table: tableName, Err: runtime.ErrNotFound}
	}

	table := &schema.TableMetadata{
		Name:        tableName,
		Columns:     make([]schema.ColumnMetadata, 0),
		ForeignKeys: make([]schema.ForeignKeyMetadata, 0),
		EnumTypes:   make([]schema.EnumType, 0),
	}

	columns, err := i.getColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	table.Columns = columns

	pk, err := i.getPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key: %w", err)
	}
	table.PrimaryKey = pk
	if pk != nil {
		for idx := range table.Columns {
			for _, name := range pk.Columns {
				if table.Columns[idx].Name == name {
					table.Columns[idx].PrimaryKey = true
				}
			}
		}
	}

	fks, err := i.getForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	table.ForeignKeys = fks

	for _, col := range table.Columns {
		if col.Type != schema.Enum {
			continue
		}
		if _, ok := table.EnumTypeByName(col.EnumType); ok {
			continue
		}
		values, err := i.GetEnumValues(ctx, col.EnumType)
		if err != nil {
			return nil, fmt.Errorf("failed to get enum type %s: %w", col.EnumType, err)
		}
		table.EnumTypes = append(table.EnumTypes, schema.EnumType{Name: col.EnumType, Values: values})
	}

	return table, nil
}

// EnumTypeExists reports whether an enum type exists in the current schema.
func (i *Introspector) EnumTypeExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := i.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM pg_type t
			JOIN pg_namespace n ON n.oid = t.typnamespace
			WHERE t.typtype = 'e'
			  AND t.typname = $1
			  AND n.nspname = current_schema()
		)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check enum type %s: %w", name, err)
	}
	return exists, nil
}

// GetEnumValues returns the labels of an enum type in declaration order.
func (i *Introspector) GetEnumValues(ctx context.Context, enumName string) ([]string, error) {
	query := `
		SELECT e.enumlabel::text
		FROM pg_enum e
		JOIN pg_type t ON t.oid = e.enumtypid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE t.typname = $1
		  AND n.nspname = current_schema()
		ORDER BY e.enumsortorder
	`

	rows, err := i.db.Query(ctx, query, enumName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		values = append(values, label)
	}

	return values, rows.Err()
}

// getColumns retrieves column information for a table.
func (i *Introspector) getColumns(ctx context.Context, tableName string) ([]schema.ColumnMetadata, error) {
	query := `
		SELECT
			column_name::text,
			data_type::text,
			udt_name::text,
			character_maximum_length::int,
			is_nullable::text,
			column_default::text,
			ordinal_position::int
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := i.db.Query(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnMetadata
	for rows.Next() {
		var col schema.ColumnMetadata
		var dataType, udtName string
		var maxLength *int32
		var isNullable string
		var defaultVal *string
		var position int32

		err := rows.Scan(
			&col.Name,
			&dataType,
			&udtName,
			&maxLength,
			&isNullable,
			&defaultVal,
			&position,
		)
		if err != nil {
			return nil, err
		}

		col.Type, col.SQLType = columnTypeOf(dataType, udtName, maxLength)
		if col.Type == schema.Enum {
			col.EnumType = udtName
		}
		col.Nullable = isNullable == "YES"
		col.Default = defaultVal
		col.Position = int(position) - 1

		// serial columns default to nextval of their owned sequence
		if defaultVal != nil && strings.Contains(*defaultVal, "nextval") {
			col.AutoIncrement = true
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// getPrimaryKey retrieves primary key information.
func (i *Introspector) getPrimaryKey(ctx context.Context, tableName string) (*schema.PrimaryKeyMetadata, error) {
	query := `
		SELECT
			tc.constraint_name::text,
			array_agg(kcu.column_name::text ORDER BY kcu.ordinal_position) as columns
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = current_schema()
			AND tc.table_name = $1
			AND tc.constraint_type = 'PRIMARY KEY'
		GROUP BY tc.constraint_name
	`

	var name string
	var columns []string

	err := i.db.QueryRow(ctx, query, tableName).Scan(&name, &columns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &schema.PrimaryKeyMetadata{
		Name:    name,
		Columns: columns,
	}, nil
}

// getForeignKeys retrieves foreign key information.
func (i *Introspector) getForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKeyMetadata, error) {
	query := `
		SELECT
			tc.constraint_name::text,
			array_agg(DISTINCT kcu.column_name::text) as columns,
			ccu.table_name::text as foreign_table,
			array_agg(DISTINCT ccu.column_name::text) as foreign_columns,
			rc.update_rule::text,
			rc.delete_rule::text
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.table_schema
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		WHERE tc.table_schema = current_schema()
			AND tc.table_name = $1
			AND tc.constraint_type = 'FOREIGN KEY'
		GROUP BY tc.constraint_name, ccu.table_name, rc.update_rule, rc.delete_rule
		ORDER BY tc.constraint_name
	`

	rows, err := i.db.Query(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foreignKeys []schema.ForeignKeyMetadata
	for rows.Next() {
		var fk schema.ForeignKeyMetadata
		var updateRule, deleteRule string

		err := rows.Scan(
			&fk.Name,
			&fk.Columns,
			&fk.ReferencedTable,
			&fk.ReferencedColumns,
			&updateRule,
			&deleteRule,
		)
		if err != nil {
			return nil, err
		}

		fk.OnUpdate = parseReferenceAction(updateRule)
		fk.OnDelete = parseReferenceAction(deleteRule)

		foreignKeys = append(foreignKeys, fk)
	}

	return foreignKeys, rows.Err()
}

// columnTypeOf maps information_schema type columns onto a column type and
// a PostgreSQL type string.
func columnTypeOf(dataType, udtName string, maxLength *int32) (schema.ColumnType, string) {
	switch dataType {
	case "integer":
		return schema.Integer, "integer"
	case "character varying":
		if maxLength != nil {
			return schema.String, fmt.Sprintf("varchar(%d)", *maxLength)
		}
		return schema.String, "varchar"
	case "double precision":
		return schema.Double, "double precision"
	case "timestamp with time zone":
		return schema.Timestamp, "timestamp with time zone"
	case "USER-DEFINED":
		return schema.Enum, udtName
	default:
		return "", dataType
	}
}

// parseReferenceAction converts a PostgreSQL rule to a ReferenceAction.
func parseReferenceAction(rule string) schema.ReferenceAction {
	switch strings.ToUpper(rule) {
	case "CASCADE":
		return schema.Cascade
	case "SET NULL":
		return schema.SetNull
	case "SET DEFAULT":
		return schema.SetDefault
	case "RESTRICT":
		return schema.Restrict
	default:
		return schema.NoAction
	}
}
