package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScriptFile describes the pair of SQL scripts exported for one unit.
type ScriptFile struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// GenerateFileName generates a script file name.
// Format: {version}_{name}.{direction}.sql
func GenerateFileName(version, name, direction string) string {
	return fmt.Sprintf("%s_%s.%s.sql", version, name, direction)
}

// Generator exports units as plain SQL scripts, for review or for running
// with tools outside this module.
type Generator struct {
	dir string
}

// NewGenerator creates a new script generator writing into dir.
func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir}
}

// Generate writes the up and down scripts of a unit.
func (g *Generator) Generate(ctx context.Context, unit Unit) (*ScriptFile, error) {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	up, err := PlanApply(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("failed to plan %s: %w", unit.Version(), err)
	}
	down, err := PlanRevert(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("failed to plan %s: %w", unit.Version(), err)
	}

	file := &ScriptFile{
		Version:  unit.Version(),
		Name:     unit.Name(),
		UpPath:   filepath.Join(g.dir, GenerateFileName(unit.Version(), unit.Name(), "up")),
		DownPath: filepath.Join(g.dir, GenerateFileName(unit.Version(), unit.Name(), "down")),
	}

	if err := g.writeFile(file.UpPath, RenderScript(unit, up)); err != nil {
		return nil, fmt.Errorf("failed to write up script: %w", err)
	}
	if err := g.writeFile(file.DownPath, RenderScript(unit, down)); err != nil {
		return nil, fmt.Errorf("failed to write down script: %w", err)
	}

	return file, nil
}

// GenerateAll writes scripts for every unit in version order.
func (g *Generator) GenerateAll(ctx context.Context, units []Unit) ([]ScriptFile, error) {
	var files []ScriptFile
	for _, unit := range SortUnits(units) {
		file, err := g.Generate(ctx, unit)
		if err != nil {
			return files, err
		}
		files = append(files, *file)
	}
	return files, nil
}

// RenderScript joins statements into a script with a header naming the unit.
// Statements are wrapped in a transaction since they must apply atomically.
func RenderScript(unit Unit, statements []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Migration: %s\n-- Version: %s\n\n", unit.Name(), unit.Version())
	sb.WriteString("BEGIN;\n\n")
	for _, stmt := range statements {
		sb.WriteString(stmt)
		sb.WriteString("\n\n")
	}
	sb.WriteString("COMMIT;\n")
	return sb.String()
}

func (g *Generator) writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
