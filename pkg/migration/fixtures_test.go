package migration

import (
	"context"

	"github.com/deliverus/deliverus-schema/pkg/schema"
)

func restaurantsFixture() *schema.TableMetadata {
	return &schema.TableMetadata{
		Name: "Restaurants",
		Columns: []schema.ColumnMetadata{
			{Name: "id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: schema.String},
			{Name: "status", Type: schema.Enum, EnumType: "enum_Restaurants_status", Nullable: true},
			{Name: "restaurantCategoryId", Type: schema.Integer, Nullable: true},
			{Name: "userId", Type: schema.Integer},
			{Name: "createdAt", Type: schema.Timestamp},
		},
		ForeignKeys: []schema.ForeignKeyMetadata{
			{
				Name:              "Restaurants_restaurantCategoryId_fkey",
				Columns:           []string{"restaurantCategoryId"},
				ReferencedTable:   "RestaurantCategories",
				ReferencedColumns: []string{"id"},
				OnUpdate:          schema.Cascade,
				OnDelete:          schema.SetNull,
			},
			{
				Name:              "Restaurants_userId_fkey",
				Columns:           []string{"userId"},
				ReferencedTable:   "Users",
				ReferencedColumns: []string{"id"},
				OnUpdate:          schema.Cascade,
				OnDelete:          schema.Cascade,
			},
		},
		EnumTypes: []schema.EnumType{
			{Name: "enum_Restaurants_status", Values: []string{"online", "offline", "closed", "temporarily closed"}},
		},
	}
}

// tableUnit creates table on apply and drops it on revert.
type tableUnit struct {
	version string
	table   *schema.TableMetadata
}

func (u tableUnit) Version() string { return u.version }
func (u tableUnit) Name() string    { return "create-" + u.table.Name }

func (u tableUnit) Apply(ctx context.Context, h SchemaHandle) error {
	return h.CreateTable(ctx, u.table)
}

func (u tableUnit) Revert(ctx context.Context, h SchemaHandle) error {
	return h.DropTable(ctx, u.table)
}
