package migration

import (
	"context"
	"fmt"

	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/deliverus/deliverus-schema/pkg/schema"
)

// PlanHandle is a SchemaHandle that records statements instead of executing
// them. It tracks which tables exist so that units see the same failures
// they would against a real database.
type PlanHandle struct {
	planner    *Planner
	tables     map[string]bool
	permissive bool
	Statements []string
}

// NewPlanHandle creates a plan handle where the given tables already exist.
func NewPlanHandle(existing ...string) *PlanHandle {
	h := &PlanHandle{
		planner: NewPlanner(),
		tables:  make(map[string]bool),
	}
	for _, name := range existing {
		h.tables[name] = true
	}
	return h
}

// NewPermissivePlanHandle creates a plan handle that skips existence checks,
// for previewing a unit without knowing the database state.
func NewPermissivePlanHandle() *PlanHandle {
	h := NewPlanHandle()
	h.permissive = true
	return h
}

// TableExists reports whether the table exists in the planned state.
func (h *PlanHandle) TableExists(_ context.Context, name string) (bool, error) {
	return h.tables[name], nil
}

// Tables returns the number of tables in the planned state.
func (h *PlanHandle) Tables() int {
	return len(h.tables)
}

// CreateTable records the statements that create the table.
func (h *PlanHandle) CreateTable(_ context.Context, table *schema.TableMetadata) error {
	const op = "create table"

	if err := schema.Validate(table); err != nil {
		return &runtime.SchemaError{Op: op, Table: tableName(table), Err: err}
	}

	if !h.permissive {
		for _, ref := range table.ReferencedTables() {
			if !h.tables[ref] {
				return &runtime.SchemaError{
					Op:    op,
					Table: table.Name,
					Err:   fmt.Errorf("%w: referenced table %q does not exist", runtime.ErrDependencyMissing, ref),
				}
			}
		}
		if h.tables[table.Name] {
			return &runtime.SchemaError{Op: op, Table: table.Name, Err: runtime.ErrAlreadyExists}
		}
	}

	up, _ := h.planner.Plan(table)
	h.Statements = append(h.Statements, up...)
	h.tables[table.Name] = true
	return nil
}

// DropTable records the statements that drop the table.
func (h *PlanHandle) DropTable(_ context.Context, table *schema.TableMetadata) error {
	if !h.permissive && !h.tables[table.Name] {
		return &runtime.SchemaError{Op: "drop table", Table: table.Name, Err: runtime.ErrNotFound}
	}

	_, down := h.planner.Plan(table)
	h.Statements = append(h.Statements, down...)
	delete(h.tables, table.Name)
	return nil
}

// PlanApply returns the statements unit.Apply would execute.
func PlanApply(ctx context.Context, unit Unit) ([]string, error) {
	h := NewPermissivePlanHandle()
	if err := unit.Apply(ctx, h); err != nil {
		return nil, err
	}
	return h.Statements, nil
}

// PlanRevert returns the statements unit.Revert would execute.
func PlanRevert(ctx context.Context, unit Unit) ([]string, error) {
	h := NewPermissivePlanHandle()
	if err := unit.Revert(ctx, h); err != nil {
		return nil, err
	}
	return h.Statements, nil
}
