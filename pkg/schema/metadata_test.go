package schema

import (
	"slices"
	"testing"
)

func TestTableMetadata_Column(t *testing.T) {
	table := validTable()

	col, ok := table.Column("status")
	if !ok {
		t.Fatal("expected status column")
	}
	if col.EnumType != "enum_Restaurants_status" {
		t.Errorf("unexpected enum type %q", col.EnumType)
	}

	if table.HasColumn("Status") {
		t.Error("column lookup must be case sensitive")
	}
}

func TestTableMetadata_ColumnNames(t *testing.T) {
	want := []string{"id", "name", "status", "restaurantCategoryId", "userId"}
	if got := validTable().ColumnNames(); !slices.Equal(got, want) {
		t.Errorf("ColumnNames() = %v, want %v", got, want)
	}
}

func TestTableMetadata_ReferencedTables(t *testing.T) {
	table := validTable()
	table.ForeignKeys = append(table.ForeignKeys,
		ForeignKeyMetadata{Columns: []string{"userId"}, ReferencedTable: "Users", ReferencedColumns: []string{"id"}},
		ForeignKeyMetadata{Columns: []string{"id"}, ReferencedTable: "Restaurants", ReferencedColumns: []string{"id"}},
	)

	want := []string{"RestaurantCategories", "Users"}
	if got := table.ReferencedTables(); !slices.Equal(got, want) {
		t.Errorf("ReferencedTables() = %v, want %v", got, want)
	}
}

func TestEnumType_Contains(t *testing.T) {
	table := validTable()
	enum, ok := table.EnumTypeByName("enum_Restaurants_status")
	if !ok {
		t.Fatal("expected enum type")
	}

	if !enum.Contains("online") {
		t.Error("expected online to be a member")
	}
	if enum.Contains("Online") {
		t.Error("enum literals are case sensitive")
	}
	if _, ok := table.EnumTypeByName("missing"); ok {
		t.Error("unexpected enum type")
	}
}
