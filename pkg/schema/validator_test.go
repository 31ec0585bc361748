package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
)

func TestValidateDefaultValue(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid CURRENT_TIMESTAMP",
			value:     "CURRENT_TIMESTAMP",
			wantError: false,
		},
		{
			name:      "valid NOW()",
			value:     "NOW()",
			wantError: false,
		},
		{
			name:      "valid gen_random_uuid()",
			value:     "gen_random_uuid()",
			wantError: false,
		},
		{
			name:      "valid number",
			value:     "0",
			wantError: false,
		},
		{
			name:      "valid boolean",
			value:     "true",
			wantError: false,
		},
		{
			name:      "valid string literal",
			value:     "'default value'",
			wantError: false,
		},
		{
			name:      "INVALID CURRENT TIMESTAMP with space",
			value:     "CURRENT TIMESTAMP",
			wantError: true,
			errorMsg:  "CURRENT_TIMESTAMP",
		},
		{
			name:      "INVALID CURRENT TIME with space",
			value:     "CURRENT TIME",
			wantError: true,
			errorMsg:  "CURRENT_TIME",
		},
		{
			name:      "INVALID NOW with space",
			value:     "NOW ()",
			wantError: true,
			errorMsg:  "NOW()",
		},
		{
			name:      "valid LOCALTIMESTAMP",
			value:     "LOCALTIMESTAMP",
			wantError: false,
		},
		{
			name:      "valid lower case localtime",
			value:     "localtime",
			wantError: false,
		},
		{
			name:      "valid literal containing a keyword",
			value:     "'current time zone'",
			wantError: false,
		},
		{
			name:      "INVALID LOCAL TIMESTAMP with space",
			value:     "LOCAL TIMESTAMP",
			wantError: true,
			errorMsg:  "LOCALTIMESTAMP",
		},
		{
			name:      "INVALID now without parentheses",
			value:     "now",
			wantError: true,
			errorMsg:  "now()",
		},
		{
			name:      "INVALID empty expression",
			value:     "  ",
			wantError: true,
			errorMsg:  "empty",
		},
		{
			name:      "case insensitive detection",
			value:     "current timestamp",
			wantError: true,
			errorMsg:  "CURRENT_TIMESTAMP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefaultValue(tt.value)

			if tt.wantError && err == nil {
				t.Errorf("Expected error for value '%s', got nil", tt.value)
			}

			if !tt.wantError && err != nil {
				t.Errorf("Expected no error for value '%s', got: %v", tt.value, err)
			}

			if tt.wantError && err != nil && tt.errorMsg != "" {
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to mention '%s', got: %v", tt.errorMsg, err)
				}
			}
		})
	}
}

func validTable() *TableMetadata {
	return &TableMetadata{
		Name: "Restaurants",
		Columns: []ColumnMetadata{
			{Name: "id", Type: Integer, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: String},
			{Name: "status", Type: Enum, EnumType: "enum_Restaurants_status", Nullable: true},
			{Name: "restaurantCategoryId", Type: Integer, Nullable: true},
			{Name: "userId", Type: Integer},
		},
		ForeignKeys: []ForeignKeyMetadata{
			{
				Name:              "Restaurants_restaurantCategoryId_fkey",
				Columns:           []string{"restaurantCategoryId"},
				ReferencedTable:   "RestaurantCategories",
				ReferencedColumns: []string{"id"},
				OnUpdate:          Cascade,
				OnDelete:          SetNull,
			},
			{
				Name:              "Restaurants_userId_fkey",
				Columns:           []string{"userId"},
				ReferencedTable:   "Users",
				ReferencedColumns: []string{"id"},
				OnUpdate:          Cascade,
				OnDelete:          Cascade,
			},
		},
		EnumTypes: []EnumType{
			{Name: "enum_Restaurants_status", Values: []string{"online", "offline"}},
		},
	}
}

func TestValidate(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name     string
		mutate   func(*TableMetadata)
		errorMsg string
	}{
		{"valid", func(*TableMetadata) {}, ""},
		{"empty name", func(tb *TableMetadata) { tb.Name = " " }, "table name"},
		{"no columns", func(tb *TableMetadata) { tb.Columns = nil; tb.ForeignKeys = nil }, "no columns"},
		{"duplicate column", func(tb *TableMetadata) {
			tb.Columns = append(tb.Columns, ColumnMetadata{Name: "name", Type: String})
		}, "declared twice"},
		{"unnamed column", func(tb *TableMetadata) {
			tb.Columns = append(tb.Columns, ColumnMetadata{Type: String})
		}, "without a name"},
		{"unsupported type", func(tb *TableMetadata) { tb.Columns[1].Type = "geometry" }, "unsupported type"},
		{"enum without type", func(tb *TableMetadata) { tb.Columns[2].EnumType = "" }, "no enum type"},
		{"undeclared enum", func(tb *TableMetadata) { tb.EnumTypes = nil }, "undeclared enum type"},
		{"empty enum", func(tb *TableMetadata) { tb.EnumTypes[0].Values = nil }, "no values"},
		{"duplicate enum value", func(tb *TableMetadata) {
			tb.EnumTypes[0].Values = []string{"online", "online"}
		}, "repeats value"},
		{"empty enum value", func(tb *TableMetadata) { tb.EnumTypes[0].Values = []string{""} }, "empty value"},
		{"enum declared twice", func(tb *TableMetadata) {
			tb.EnumTypes = append(tb.EnumTypes, tb.EnumTypes[0])
		}, "declared twice"},
		{"auto-increment string", func(tb *TableMetadata) { tb.Columns[1].AutoIncrement = true }, "auto-increment"},
		{"nullable primary key", func(tb *TableMetadata) { tb.Columns[0].Nullable = true }, "cannot be nullable"},
		{"primary key missing column", func(tb *TableMetadata) {
			tb.PrimaryKey = &PrimaryKeyMetadata{Columns: []string{"uuid"}}
		}, "does not exist"},
		{"bad default", func(tb *TableMetadata) { tb.Columns[1].Default = strPtr("NOW ()") }, "NOW()"},
		{"timestamp default LOCALTIMESTAMP", func(tb *TableMetadata) {
			tb.Columns = append(tb.Columns, ColumnMetadata{Name: "createdAt", Type: Timestamp, Default: strPtr("LOCALTIMESTAMP")})
		}, ""},
		{"timestamp default now()", func(tb *TableMetadata) {
			tb.Columns = append(tb.Columns, ColumnMetadata{Name: "createdAt", Type: Timestamp, Default: strPtr("now()")})
		}, ""},
		{"integer default now()", func(tb *TableMetadata) { tb.Columns[4].Default = strPtr("now()") }, "cannot default to now()"},
		{"integer default string literal", func(tb *TableMetadata) { tb.Columns[4].Default = strPtr("'1'") }, "string literal"},
		{"enum default declared value", func(tb *TableMetadata) { tb.Columns[2].Default = strPtr("'online'") }, ""},
		{"enum default unknown value", func(tb *TableMetadata) { tb.Columns[2].Default = strPtr("'open'") }, "does not declare"},
		{"enum default unquoted", func(tb *TableMetadata) { tb.Columns[2].Default = strPtr("online") }, "quoted literal"},
		{"not null default NULL", func(tb *TableMetadata) { tb.Columns[1].Default = strPtr("NULL") }, "defaults to NULL"},
		{"nullable default NULL", func(tb *TableMetadata) { tb.Columns[2].Default = strPtr("NULL") }, ""},
		{"foreign key missing table", func(tb *TableMetadata) { tb.ForeignKeys[0].ReferencedTable = "" }, "no referenced table"},
		{"foreign key arity", func(tb *TableMetadata) {
			tb.ForeignKeys[0].ReferencedColumns = []string{"id", "other"}
		}, "1 columns reference 2"},
		{"foreign key unknown action", func(tb *TableMetadata) { tb.ForeignKeys[1].OnDelete = "EXPLODE" }, "unknown reference action"},
		{"foreign key missing column", func(tb *TableMetadata) {
			tb.ForeignKeys[1].Columns = []string{"ownerId"}
		}, "does not exist"},
		{"set null on not null column", func(tb *TableMetadata) { tb.ForeignKeys[1].OnDelete = SetNull }, "SET NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := validTable()
			tt.mutate(table)

			err := Validate(table)

			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error mentioning %q, got nil", tt.errorMsg)
			}
			if !errors.Is(err, runtime.ErrConstraintViolation) {
				t.Errorf("Expected ErrConstraintViolation, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to mention %q, got: %v", tt.errorMsg, err)
			}
		})
	}
}

func TestValidate_NilTable(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, runtime.ErrConstraintViolation) {
		t.Errorf("Expected ErrConstraintViolation, got: %v", err)
	}
}
