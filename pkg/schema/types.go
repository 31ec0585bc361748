package schema

import "strings"

// TypeMapper handles mapping between abstract column types and PostgreSQL types.
type TypeMapper struct {
	customMappings map[ColumnType]string
}

// NewTypeMapper creates a new TypeMapper instance.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		customMappings: make(map[ColumnType]string),
	}
}

// RegisterType overrides the PostgreSQL type used for a column type.
func (tm *TypeMapper) RegisterType(colType ColumnType, pgType string) {
	tm.customMappings[colType] = pgType
}

// ColumnTypeToPostgreSQL maps a column type to its PostgreSQL equivalent.
// Returns empty string for unknown types.
func (tm *TypeMapper) ColumnTypeToPostgreSQL(colType ColumnType) string {
	if pgType, ok := tm.customMappings[colType]; ok {
		return pgType
	}

	switch colType {
	case Integer:
		return "integer"
	case String:
		// Same length Sequelize uses for STRING
		return "varchar(255)"
	case Double:
		return "double precision"
	case Timestamp:
		return "timestamp with time zone"
	}

	return ""
}

// SQLTypeFor returns the PostgreSQL type for a column definition.
// An explicit SQLType wins, enum columns use their enum type name and
// auto-incrementing integers become serial.
func (tm *TypeMapper) SQLTypeFor(col ColumnMetadata) string {
	if col.SQLType != "" {
		return col.SQLType
	}
	if col.Type == Enum {
		return col.EnumType
	}
	if col.AutoIncrement && col.Type == Integer {
		return "serial"
	}
	return tm.ColumnTypeToPostgreSQL(col.Type)
}

// NormalizeSQLType folds PostgreSQL type aliases onto one spelling so that
// declared and introspected types compare equal.
func NormalizeSQLType(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	switch t {
	case "serial", "serial4", "int", "int4":
		return "integer"
	case "bigserial", "serial8", "int8":
		return "bigint"
	case "float8":
		return "double precision"
	case "timestamptz":
		return "timestamp with time zone"
	case "character varying":
		return "varchar"
	}
	if strings.HasPrefix(t, "character varying(") {
		return "varchar" + strings.TrimPrefix(t, "character varying")
	}
	return t
}

// DefaultTypeMapper is the global type mapper instance.
var DefaultTypeMapper = NewTypeMapper()
