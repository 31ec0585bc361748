package migration

import (
	"fmt"
	"strings"

	"github.com/deliverus/deliverus-schema/pkg/schema"
)

// quoteIdent quotes a PostgreSQL identifier. Table and column names here are
// camelCase and would be folded to lower case unquoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a PostgreSQL string literal.
func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}

// Planner generates the SQL statements for creating and dropping a table.
//
// Statements never carry IF [NOT] EXISTS: creating an existing table or
// dropping a missing one must fail rather than hide drift.
type Planner struct {
	types *schema.TypeMapper
}

// NewPlanner creates a new planner using the default type mapper.
func NewPlanner() *Planner {
	return &Planner{types: schema.DefaultTypeMapper}
}

// NewPlannerWithTypes creates a planner with a custom type mapper.
func NewPlannerWithTypes(types *schema.TypeMapper) *Planner {
	return &Planner{types: types}
}

// Plan returns the statements that create the table and the statements that
// drop it again. Enum types are created before the table and dropped after it.
func (p *Planner) Plan(table *schema.TableMetadata) (up, down []string) {
	for _, enumType := range table.EnumTypes {
		up = append(up, p.CreateEnumType(enumType))
	}
	up = append(up, p.CreateTable(table))

	down = append(down, p.DropTable(table.Name))
	for i := len(table.EnumTypes) - 1; i >= 0; i-- {
		down = append(down, p.DropEnumType(table.EnumTypes[i].Name))
	}

	return up, down
}

// GenerateScript renders Plan as two SQL scripts.
func (p *Planner) GenerateScript(table *schema.TableMetadata) (upSQL, downSQL string) {
	up, down := p.Plan(table)
	return strings.Join(up, "\n\n") + "\n", strings.Join(down, "\n\n") + "\n"
}

// CreateTable generates a CREATE TABLE statement.
func (p *Planner) CreateTable(table *schema.TableMetadata) string {
	var parts []string

	pkColumns := primaryKeyColumns(table)

	// Single-column primary keys are declared inline
	var singlePKColumn string
	if len(pkColumns) == 1 {
		singlePKColumn = pkColumns[0]
	}

	for _, col := range table.Columns {
		colDef := p.columnDefinition(col)
		if col.Name == singlePKColumn {
			colDef += " PRIMARY KEY"
		}
		parts = append(parts, "    "+colDef)
	}

	if len(pkColumns) > 1 {
		name := table.Name + "_pkey"
		if table.PrimaryKey != nil && table.PrimaryKey.Name != "" {
			name = table.PrimaryKey.Name
		}
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)", quoteIdent(name), quoteIdents(pkColumns)))
	}

	for _, fk := range table.ForeignKeys {
		parts = append(parts, "    "+p.foreignKeyDefinition(fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", quoteIdent(table.Name), strings.Join(parts, ",\n"))
}

// columnDefinition generates a column definition.
func (p *Planner) columnDefinition(col schema.ColumnMetadata) string {
	sqlType := p.types.SQLTypeFor(col)
	if col.Type == schema.Enum && col.SQLType == "" {
		sqlType = quoteIdent(col.EnumType)
	}

	parts := []string{quoteIdent(col.Name), sqlType}

	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}

	if col.Default != nil {
		parts = append(parts, "DEFAULT", *col.Default)
	}

	return strings.Join(parts, " ")
}

// foreignKeyDefinition generates a foreign key table constraint.
func (p *Planner) foreignKeyDefinition(fk schema.ForeignKeyMetadata) string {
	parts := []string{
		fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s)", quoteIdent(fk.Name), quoteIdents(fk.Columns)),
		fmt.Sprintf("REFERENCES %s (%s)", quoteIdent(fk.ReferencedTable), quoteIdents(fk.ReferencedColumns)),
	}

	if fk.OnDelete != schema.NoAction && fk.OnDelete != "" {
		parts = append(parts, "ON DELETE "+string(fk.OnDelete))
	}

	if fk.OnUpdate != schema.NoAction && fk.OnUpdate != "" {
		parts = append(parts, "ON UPDATE "+string(fk.OnUpdate))
	}

	return strings.Join(parts, " ")
}

// DropTable generates a DROP TABLE statement.
func (p *Planner) DropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE %s;", quoteIdent(tableName))
}

// CreateEnumType generates a CREATE TYPE statement for an enum.
func (p *Planner) CreateEnumType(enumType schema.EnumType) string {
	quotedValues := make([]string, len(enumType.Values))
	for i, val := range enumType.Values {
		quotedValues[i] = quoteLiteral(val)
	}

	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", quoteIdent(enumType.Name), strings.Join(quotedValues, ", "))
}

// DropEnumType generates a DROP TYPE statement for an enum.
func (p *Planner) DropEnumType(enumName string) string {
	return fmt.Sprintf("DROP TYPE %s;", quoteIdent(enumName))
}

// primaryKeyColumns returns the primary key columns, taken from the table's
// PrimaryKey when set and from column flags otherwise.
func primaryKeyColumns(table *schema.TableMetadata) []string {
	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) > 0 {
		return table.PrimaryKey.Columns
	}
	var cols []string
	for _, col := range table.Columns {
		if col.PrimaryKey {
			cols = append(cols, col.Name)
		}
	}
	return cols
}
