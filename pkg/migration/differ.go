package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/deliverus/deliverus-schema/pkg/schema"
)

// Differ compares a declared table with its introspected counterpart.
type Differ struct {
	types *schema.TypeMapper
}

// NewDiffer creates a new schema differ.
func NewDiffer() *Differ {
	return &Differ{types: schema.DefaultTypeMapper}
}

// CompareTable returns how the live table differs from the declared one.
func (d *Differ) CompareTable(declared, live *schema.TableMetadata) TableDiff {
	diff := TableDiff{
		TableName:          declared.Name,
		ColumnsAdded:       make([]schema.ColumnMetadata, 0),
		ColumnsDropped:     make([]string, 0),
		ColumnsModified:    make([]ColumnDiff, 0),
		ForeignKeysAdded:   make([]schema.ForeignKeyMetadata, 0),
		ForeignKeysDropped: make([]schema.ForeignKeyMetadata, 0),
		EnumTypesModified:  make([]EnumTypeDiff, 0),
	}

	d.compareColumns(declared, live, &diff)
	d.comparePrimaryKey(declared, live, &diff)
	d.compareForeignKeys(declared, live, &diff)
	d.compareEnumTypes(declared, live, &diff)

	return diff
}

// compareColumns compares columns in declaration order.
func (d *Differ) compareColumns(declared, live *schema.TableMetadata, diff *TableDiff) {
	for _, col := range declared.Columns {
		liveCol, ok := live.Column(col.Name)
		if !ok {
			diff.ColumnsAdded = append(diff.ColumnsAdded, col)
			continue
		}

		colDiff := ColumnDiff{
			ColumnName: col.Name,
			Declared:   col,
			Live:       liveCol,
		}
		colDiff.TypeChanged = !d.sameType(col, liveCol)
		colDiff.NullChanged = col.Nullable != liveCol.Nullable
		// serial defaults are generated by the engine
		if !col.AutoIncrement {
			colDiff.DefaultChanged = !sameDefault(col.Default, liveCol.Default)
		}

		if colDiff.TypeChanged || colDiff.NullChanged || colDiff.DefaultChanged {
			diff.ColumnsModified = append(diff.ColumnsModified, colDiff)
		}
	}

	for _, col := range live.Columns {
		if !declared.HasColumn(col.Name) {
			diff.ColumnsDropped = append(diff.ColumnsDropped, col.Name)
		}
	}
}

func (d *Differ) sameType(declared, live schema.ColumnMetadata) bool {
	if declared.Type == schema.Enum || live.Type == schema.Enum {
		return declared.Type == live.Type && declared.EnumType == live.EnumType
	}
	if declared.AutoIncrement != live.AutoIncrement {
		return false
	}
	return schema.NormalizeSQLType(d.types.SQLTypeFor(declared)) == schema.NormalizeSQLType(live.SQLType)
}

func sameDefault(declared, live *string) bool {
	if declared == nil || live == nil {
		return declared == nil && live == nil
	}
	return strings.EqualFold(strings.TrimSpace(*declared), strings.TrimSpace(*live))
}

// comparePrimaryKey compares primary key column lists.
func (d *Differ) comparePrimaryKey(declared, live *schema.TableMetadata, diff *TableDiff) {
	declaredCols := primaryKeyColumns(declared)
	liveCols := primaryKeyColumns(live)
	if !slices.Equal(declaredCols, liveCols) {
		diff.PrimaryKeyChanged = &PrimaryKeyChange{Declared: declaredCols, Live: liveCols}
	}
}

// compareForeignKeys matches foreign keys by shape rather than by name, so a
// renamed constraint with the same columns and actions is not drift.
func (d *Differ) compareForeignKeys(declared, live *schema.TableMetadata, diff *TableDiff) {
	liveKeys := make(map[string]bool, len(live.ForeignKeys))
	for _, fk := range live.ForeignKeys {
		liveKeys[foreignKeySignature(fk)] = true
	}
	declaredKeys := make(map[string]bool, len(declared.ForeignKeys))
	for _, fk := range declared.ForeignKeys {
		sig := foreignKeySignature(fk)
		declaredKeys[sig] = true
		if !liveKeys[sig] {
			diff.ForeignKeysAdded = append(diff.ForeignKeysAdded, fk)
		}
	}
	for _, fk := range live.ForeignKeys {
		if !declaredKeys[foreignKeySignature(fk)] {
			diff.ForeignKeysDropped = append(diff.ForeignKeysDropped, fk)
		}
	}
}

func foreignKeySignature(fk schema.ForeignKeyMetadata) string {
	cols := slices.Clone(fk.Columns)
	refCols := slices.Clone(fk.ReferencedColumns)
	slices.Sort(cols)
	slices.Sort(refCols)
	return fmt.Sprintf("%s->%s(%s)|u:%s|d:%s",
		strings.Join(cols, ","),
		fk.ReferencedTable,
		strings.Join(refCols, ","),
		normalizeAction(fk.OnUpdate),
		normalizeAction(fk.OnDelete),
	)
}

func normalizeAction(action schema.ReferenceAction) schema.ReferenceAction {
	if action == "" {
		return schema.NoAction
	}
	return action
}

// compareEnumTypes compares the literals of enum types declared by the table.
func (d *Differ) compareEnumTypes(declared, live *schema.TableMetadata, diff *TableDiff) {
	for _, enumType := range declared.EnumTypes {
		liveEnum, ok := live.EnumTypeByName(enumType.Name)
		if !ok {
			// Reported through the column type when the column is present
			continue
		}
		if !slices.Equal(enumType.Values, liveEnum.Values) {
			diff.EnumTypesModified = append(diff.EnumTypesModified, EnumTypeDiff{
				Name:     enumType.Name,
				Declared: enumType.Values,
				Live:     liveEnum.Values,
			})
		}
	}
}

// Describe renders the diff as one line per difference.
func (t TableDiff) Describe() []string {
	var lines []string
	for _, col := range t.ColumnsAdded {
		lines = append(lines, fmt.Sprintf("column %s.%s is missing", t.TableName, col.Name))
	}
	for _, name := range t.ColumnsDropped {
		lines = append(lines, fmt.Sprintf("column %s.%s is not declared", t.TableName, name))
	}
	for _, c := range t.ColumnsModified {
		if c.TypeChanged {
			lines = append(lines, fmt.Sprintf("column %s.%s has type %s", t.TableName, c.ColumnName, c.Live.SQLType))
		}
		if c.NullChanged {
			lines = append(lines, fmt.Sprintf("column %s.%s nullable=%t, declared nullable=%t",
				t.TableName, c.ColumnName, c.Live.Nullable, c.Declared.Nullable))
		}
		if c.DefaultChanged {
			lines = append(lines, fmt.Sprintf("column %s.%s has a different default", t.TableName, c.ColumnName))
		}
	}
	if t.PrimaryKeyChanged != nil {
		lines = append(lines, fmt.Sprintf("primary key is (%s), declared (%s)",
			strings.Join(t.PrimaryKeyChanged.Live, ", "), strings.Join(t.PrimaryKeyChanged.Declared, ", ")))
	}
	for _, fk := range t.ForeignKeysAdded {
		lines = append(lines, fmt.Sprintf("foreign key %s -> %s is missing", strings.Join(fk.Columns, ","), fk.ReferencedTable))
	}
	for _, fk := range t.ForeignKeysDropped {
		lines = append(lines, fmt.Sprintf("foreign key %s -> %s (update %s, delete %s) is not declared",
			strings.Join(fk.Columns, ","), fk.ReferencedTable, normalizeAction(fk.OnUpdate), normalizeAction(fk.OnDelete)))
	}
	for _, e := range t.EnumTypesModified {
		lines = append(lines, fmt.Sprintf("enum %s has values %v, declared %v", e.Name, e.Live, e.Declared))
	}
	return lines
}
