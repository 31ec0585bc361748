// Package migrations holds the concrete schema migration units of the
// DeliverUS backend. Units register themselves with the global registry.
package migrations

import (
	"context"

	"github.com/deliverus/deliverus-schema/pkg/migration"
	"github.com/deliverus/deliverus-schema/pkg/registry"
	"github.com/deliverus/deliverus-schema/pkg/schema"
)

// Table and constraint names. Enum and foreign key names follow the
// Sequelize conventions so that existing databases introspect identically.
const (
	RestaurantsTableName          = "Restaurants"
	RestaurantCategoriesTableName = "RestaurantCategories"
	UsersTableName                = "Users"

	RestaurantStatusEnum = "enum_Restaurants_status"

	restaurantCategoryFK = "Restaurants_restaurantCategoryId_fkey"
	restaurantUserFK     = "Restaurants_userId_fkey"
)

// RestaurantStatus is a value of the status column.
type RestaurantStatus string

const (
	StatusOnline            RestaurantStatus = "online"
	StatusOffline           RestaurantStatus = "offline"
	StatusClosed            RestaurantStatus = "closed"
	StatusTemporarilyClosed RestaurantStatus = "temporarily closed"
)

// RestaurantStatuses lists the accepted statuses in enum order.
var RestaurantStatuses = []RestaurantStatus{
	StatusOnline,
	StatusOffline,
	StatusClosed,
	StatusTemporarilyClosed,
}

// IsValid reports whether s is one of the enum literals.
func (s RestaurantStatus) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusClosed, StatusTemporarilyClosed:
		return true
	}
	return false
}

func statusValues() []string {
	values := make([]string, len(RestaurantStatuses))
	for i, s := range RestaurantStatuses {
		values[i] = string(s)
	}
	return values
}

// RestaurantsTable is the definition of the Restaurants table.
//
// status is nullable: the column was declared without a NOT NULL constraint
// and existing rows may rely on that.
var RestaurantsTable = schema.TableMetadata{
	Name: RestaurantsTableName,
	Columns: []schema.ColumnMetadata{
		{Name: "id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true, Position: 0},
		{Name: "name", Type: schema.String, Position: 1},
		{Name: "description", Type: schema.String, Nullable: true, Position: 2},
		{Name: "address", Type: schema.String, Position: 3},
		{Name: "postalCode", Type: schema.String, Position: 4},
		{Name: "url", Type: schema.String, Nullable: true, Position: 5},
		{Name: "shippingCosts", Type: schema.Double, Position: 6},
		{Name: "averageServiceMinutes", Type: schema.Double, Nullable: true, Position: 7},
		{Name: "email", Type: schema.String, Nullable: true, Position: 8},
		{Name: "phone", Type: schema.String, Nullable: true, Position: 9},
		{Name: "logo", Type: schema.String, Nullable: true, Position: 10},
		{Name: "heroImage", Type: schema.String, Nullable: true, Position: 11},
		{Name: "status", Type: schema.Enum, EnumType: RestaurantStatusEnum, Nullable: true, Position: 12},
		{Name: "restaurantCategoryId", Type: schema.Integer, Nullable: true, Position: 13},
		{Name: "userId", Type: schema.Integer, Position: 14},
		{Name: "createdAt", Type: schema.Timestamp, Position: 15},
		{Name: "updatedAt", Type: schema.Timestamp, Position: 16},
	},
	PrimaryKey: &schema.PrimaryKeyMetadata{
		Name:    "Restaurants_pkey",
		Columns: []string{"id"},
	},
	ForeignKeys: []schema.ForeignKeyMetadata{
		{
			Name:              restaurantCategoryFK,
			Columns:           []string{"restaurantCategoryId"},
			ReferencedTable:   RestaurantCategoriesTableName,
			ReferencedColumns: []string{"id"},
			OnUpdate:          schema.Cascade,
			OnDelete:          schema.SetNull,
		},
		{
			Name:              restaurantUserFK,
			Columns:           []string{"userId"},
			ReferencedTable:   UsersTableName,
			ReferencedColumns: []string{"id"},
			OnUpdate:          schema.Cascade,
			OnDelete:          schema.Cascade,
		},
	},
	EnumTypes: []schema.EnumType{
		{Name: RestaurantStatusEnum, Values: statusValues()},
	},
}

// CreateRestaurants creates and drops the Restaurants table.
type CreateRestaurants struct{}

// Version implements migration.Unit.
func (CreateRestaurants) Version() string { return "20210629195916" }

// Name implements migration.Unit.
func (CreateRestaurants) Name() string { return "create-restaurant" }

// Apply creates the Restaurants table. RestaurantCategories and Users must exist.
func (CreateRestaurants) Apply(ctx context.Context, h migration.SchemaHandle) error {
	return h.CreateTable(ctx, &RestaurantsTable)
}

// Revert drops the Restaurants table and its status enum.
func (CreateRestaurants) Revert(ctx context.Context, h migration.SchemaHandle) error {
	return h.DropTable(ctx, &RestaurantsTable)
}

func init() {
	registry.MustRegister(CreateRestaurants{})
}

// Tables returns the definitions of every table the units in this package create.
func Tables() []*schema.TableMetadata {
	return []*schema.TableMetadata{&RestaurantsTable}
}
