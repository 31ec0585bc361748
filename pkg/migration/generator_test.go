package migration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFileName(t *testing.T) {
	assert.Equal(t, "20210629195916_create-restaurant.up.sql", GenerateFileName("20210629195916", "create-restaurant", "up"))
}

func TestGenerator_Generate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sql")
	unit := tableUnit{version: "20210629195916", table: restaurantsFixture()}

	file, err := NewGenerator(dir).Generate(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "20210629195916_create-Restaurants.up.sql"), file.UpPath)

	up, err := os.ReadFile(file.UpPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(up), "-- Migration: create-Restaurants\n-- Version: 20210629195916\n\nBEGIN;\n"))
	assert.Contains(t, string(up), `CREATE TABLE "Restaurants"`)
	assert.True(t, strings.HasSuffix(string(up), "COMMIT;\n"))

	down, err := os.ReadFile(file.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), `DROP TYPE "enum_Restaurants_status";`)
}

func TestGenerator_GenerateAllInVersionOrder(t *testing.T) {
	dir := t.TempDir()
	users := restaurantsFixture()
	users.Name = "Other"
	users.EnumTypes[0].Name = "enum_Other_status"
	users.Columns[2].EnumType = "enum_Other_status"

	files, err := NewGenerator(dir).GenerateAll(context.Background(), []Unit{
		tableUnit{version: "20210701000000", table: users},
		tableUnit{version: "20210629195916", table: restaurantsFixture()},
	})
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "20210629195916", files[0].Version)
	assert.Equal(t, "20210701000000", files[1].Version)
}

func TestGenerator_InvalidUnit(t *testing.T) {
	table := restaurantsFixture()
	table.Columns = nil

	_, err := NewGenerator(t.TempDir()).Generate(context.Background(), tableUnit{version: "1", table: table})

	assert.Error(t, err)
}
