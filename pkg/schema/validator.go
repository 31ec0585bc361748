package schema

import (
	"fmt"
	"strings"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
)

// Validate checks that a table definition can be expressed by the engine.
// Every failure wraps runtime.ErrConstraintViolation.
func Validate(table *TableMetadata) error {
	if table == nil || strings.TrimSpace(table.Name) == "" {
		return violation("table name is required")
	}
	if len(table.Columns) == 0 {
		return violation("table %s declares no columns", table.Name)
	}

	enums := make(map[string][]string)
	for _, e := range table.EnumTypes {
		if err := validateEnumType(e); err != nil {
			return err
		}
		if _, dup := enums[e.Name]; dup {
			return violation("enum type %s declared twice", e.Name)
		}
		enums[e.Name] = e.Values
	}

	seen := make(map[string]bool)
	for _, col := range table.Columns {
		if col.Name == "" {
			return violation("table %s has a column without a name", table.Name)
		}
		if seen[col.Name] {
			return violation("column %s.%s declared twice", table.Name, col.Name)
		}
		seen[col.Name] = true

		if err := validateColumn(col, enums); err != nil {
			return err
		}
	}

	if table.PrimaryKey != nil {
		for _, name := range table.PrimaryKey.Columns {
			col, ok := table.Column(name)
			if !ok {
				return violation("primary key column %s.%s does not exist", table.Name, name)
			}
			if col.Nullable {
				return violation("primary key column %s.%s cannot be nullable", table.Name, name)
			}
		}
	}

	for _, fk := range table.ForeignKeys {
		if err := validateForeignKey(table, fk); err != nil {
			return err
		}
	}

	return nil
}

func validateEnumType(e EnumType) error {
	if e.Name == "" {
		return violation("enum type without a name")
	}
	if len(e.Values) == 0 {
		return violation("enum type %s has no values", e.Name)
	}
	values := make(map[string]bool, len(e.Values))
	for _, v := range e.Values {
		if v == "" {
			return violation("enum type %s has an empty value", e.Name)
		}
		if values[v] {
			return violation("enum type %s repeats value %q", e.Name, v)
		}
		values[v] = true
	}
	return nil
}

func validateColumn(col ColumnMetadata, enums map[string][]string) error {
	switch col.Type {
	case Integer, String, Double, Timestamp:
	case Enum:
		if col.EnumType == "" {
			return violation("enum column %s has no enum type", col.Name)
		}
		if _, ok := enums[col.EnumType]; !ok {
			return violation("enum column %s uses undeclared enum type %s", col.Name, col.EnumType)
		}
	default:
		return violation("column %s has unsupported type %q", col.Name, col.Type)
	}

	if col.AutoIncrement && col.Type != Integer {
		return violation("column %s: auto-increment requires an integer column", col.Name)
	}
	if col.PrimaryKey && col.Nullable {
		return violation("primary key column %s cannot be nullable", col.Name)
	}
	if col.Default != nil {
		if err := ValidateDefaultValue(*col.Default); err != nil {
			return fmt.Errorf("%w: column %s: %w", runtime.ErrConstraintViolation, col.Name, err)
		}
		if err := validateDefaultFor(col, enums[col.EnumType]); err != nil {
			return err
		}
	}
	return nil
}

// validateDefaultFor checks that a default expression fits the column type.
func validateDefaultFor(col ColumnMetadata, enumValues []string) error {
	expr := strings.TrimSpace(*col.Default)
	if strings.EqualFold(expr, "NULL") {
		if !col.Nullable {
			return violation("column %s is NOT NULL but defaults to NULL", col.Name)
		}
		return nil
	}

	if isTimestampFunction(expr) && col.Type != Timestamp && col.Type != String {
		return violation("column %s of type %s cannot default to %s", col.Name, col.Type, expr)
	}

	switch col.Type {
	case Integer, Double:
		if isQuoted(expr) {
			return violation("column %s of type %s cannot default to a string literal", col.Name, col.Type)
		}
	case Enum:
		if !isQuoted(expr) {
			return violation("enum column %s must default to a quoted literal", col.Name)
		}
		literal := strings.ReplaceAll(expr[1:len(expr)-1], "''", "'")
		for _, v := range enumValues {
			if v == literal {
				return nil
			}
		}
		return violation("enum column %s defaults to %q, which %s does not declare", col.Name, literal, col.EnumType)
	}
	return nil
}

func validateForeignKey(table *TableMetadata, fk ForeignKeyMetadata) error {
	if fk.ReferencedTable == "" {
		return violation("foreign key %s has no referenced table", fk.Name)
	}
	if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferencedColumns) {
		return violation("foreign key %s: %d columns reference %d columns",
			fk.Name, len(fk.Columns), len(fk.ReferencedColumns))
	}
	for _, action := range []ReferenceAction{fk.OnUpdate, fk.OnDelete} {
		if !isKnownAction(action) {
			return violation("foreign key %s: unknown reference action %q", fk.Name, action)
		}
	}
	for _, name := range fk.Columns {
		col, ok := table.Column(name)
		if !ok {
			return violation("foreign key %s: column %s.%s does not exist", fk.Name, table.Name, name)
		}
		if !col.Nullable && (fk.OnDelete == SetNull || fk.OnUpdate == SetNull) {
			return violation("foreign key %s: SET NULL on non-nullable column %s", fk.Name, name)
		}
	}
	return nil
}

func isKnownAction(action ReferenceAction) bool {
	switch action {
	case "", Cascade, SetNull, SetDefault, Restrict, NoAction:
		return true
	}
	return false
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", runtime.ErrConstraintViolation, fmt.Sprintf(format, args...))
}

// defaultMisspellings maps misspelled timestamp functions to their SQL
// spelling. Longer forms come first so CURRENT TIMESTAMP is not reported as
// CURRENT TIME.
var defaultMisspellings = []struct{ wrong, right string }{
	{"CURRENT TIMESTAMP", "CURRENT_TIMESTAMP"},
	{"CURRENT TIME", "CURRENT_TIME"},
	{"CURRENT DATE", "CURRENT_DATE"},
	{"LOCAL TIMESTAMP", "LOCALTIMESTAMP"},
	{"LOCAL TIME", "LOCALTIME"},
	{"NOW ()", "NOW()"},
}

// sqlKeywords are the bare words accepted as default expressions.
var sqlKeywords = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true,
	"CURRENT_TIMESTAMP": true, "CURRENT_TIME": true, "CURRENT_DATE": true,
	"LOCALTIMESTAMP": true, "LOCALTIME": true,
}

// timestampFunctions need parentheses when written as calls.
var timestampFunctions = map[string]bool{
	"now":                   true,
	"clock_timestamp":       true,
	"statement_timestamp":   true,
	"transaction_timestamp": true,
}

// ValidateDefaultValue checks if a default value expression is likely valid SQL.
// Returns an error with helpful suggestions if issues are detected.
func ValidateDefaultValue(defaultVal string) error {
	trimmed := strings.TrimSpace(defaultVal)
	if trimmed == "" {
		return fmt.Errorf("invalid DEFAULT value: expression is empty")
	}
	if isQuoted(trimmed) || isNumeric(trimmed) {
		return nil
	}

	upperVal := strings.ToUpper(trimmed)
	for _, m := range defaultMisspellings {
		if strings.Contains(upperVal, m.wrong) {
			return fmt.Errorf(
				"invalid DEFAULT value: '%s' contains '%s' which should be '%s'",
				defaultVal, m.wrong, m.right,
			)
		}
	}

	if !sqlKeywords[upperVal] && timestampFunctions[strings.ToLower(trimmed)] {
		return fmt.Errorf(
			"invalid DEFAULT value: '%s' looks like a function but is missing parentheses ()\n"+
				"Possible fix: %s()",
			defaultVal, trimmed,
		)
	}

	return nil
}

// isTimestampFunction reports whether expr evaluates to the current time.
func isTimestampFunction(expr string) bool {
	upper := strings.ToUpper(strings.TrimSpace(expr))
	if upper != "NULL" && upper != "TRUE" && upper != "FALSE" && sqlKeywords[upper] {
		return true
	}
	name, _, ok := strings.Cut(strings.ToLower(expr), "(")
	return ok && timestampFunctions[strings.TrimSpace(name)]
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

// isNumeric checks if a string is a valid number
func isNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i, c := range s {
		if i == 0 && (c == '-' || c == '+') {
			continue
		}
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
