// Package schema describes relational tables as plain data.
//
// A TableMetadata value is the complete, inspectable description of a table:
// its columns, primary key, foreign keys and the enum types its columns use.
// Migration units declare their tables as package-level values of this type
// so that what a unit does can be read without running it.
package schema

// ColumnType is the abstract type of a column, independent of the engine.
type ColumnType string

const (
	Integer   ColumnType = "integer"
	String    ColumnType = "string"
	Double    ColumnType = "double"
	Timestamp ColumnType = "timestamp"
	Enum      ColumnType = "enum"
)

// ReferenceAction is the referential action taken on update or delete of a
// referenced row.
type ReferenceAction string

const (
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
	Restrict   ReferenceAction = "RESTRICT"
	NoAction   ReferenceAction = "NO ACTION"
)

// TableMetadata describes a table.
type TableMetadata struct {
	Name        string
	Columns     []ColumnMetadata
	PrimaryKey  *PrimaryKeyMetadata
	ForeignKeys []ForeignKeyMetadata
	EnumTypes   []EnumType // Enum types owned by this table
}

// ColumnMetadata describes a single column.
type ColumnMetadata struct {
	Name          string
	Type          ColumnType
	SQLType       string  // Engine type; derived from Type when empty
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       *string // SQL expression, nil for no default
	EnumType      string  // Name of the enum type for Enum columns
	Position      int
}

// PrimaryKeyMetadata describes a primary key constraint.
type PrimaryKeyMetadata struct {
	Name    string
	Columns []string
}

// ForeignKeyMetadata describes a foreign key constraint.
type ForeignKeyMetadata struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnUpdate          ReferenceAction
	OnDelete          ReferenceAction
}

// EnumType is a closed set of string literals.
type EnumType struct {
	Name   string
	Values []string
}

// Column returns the column with the given name.
func (t *TableMetadata) Column(name string) (ColumnMetadata, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnMetadata{}, false
}

// HasColumn reports whether the table declares a column with the given name.
func (t *TableMetadata) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// ReferencedTables returns the distinct tables referenced by foreign keys,
// in declaration order. Self references are not included.
func (t *TableMetadata) ReferencedTables() []string {
	seen := make(map[string]bool)
	var tables []string
	for _, fk := range t.ForeignKeys {
		if fk.ReferencedTable == t.Name || seen[fk.ReferencedTable] {
			continue
		}
		seen[fk.ReferencedTable] = true
		tables = append(tables, fk.ReferencedTable)
	}
	return tables
}

// EnumTypeByName returns the enum type owned by the table with the given name.
func (t *TableMetadata) EnumTypeByName(name string) (EnumType, bool) {
	for _, e := range t.EnumTypes {
		if e.Name == name {
			return e, true
		}
	}
	return EnumType{}, false
}

// Contains reports whether value is one of the enum literals.
func (e EnumType) Contains(value string) bool {
	for _, v := range e.Values {
		if v == value {
			return true
		}
	}
	return false
}
