package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// PlanOptions configures how tables are turned into migration steps.
type PlanOptions struct {
	UseDatabaseCollation bool
	IndexNaming          NamingOptions
	ForeignKeyNaming     NamingOptions
	IndexFeaturePolicy   IndexFeaturePolicy
}

// CreateStep holds everything Schema::create needs for one table.
type CreateStep struct {
	Table      string
	Options    []Statement
	Columns    []Statement
	PrimaryKey *Statement
	Indexes    []Statement
}

func (s CreateStep) statements() []Statement {
	out := make([]Statement, 0, len(s.Options)+len(s.Columns)+len(s.Indexes)+1)
	out = append(out, s.Options...)
	out = append(out, s.Columns...)
	if s.PrimaryKey != nil {
		out = append(out, *s.PrimaryKey)
	}
	out = append(out, s.Indexes...)
	return out
}

// ForeignKeyStep holds the foreign keys of one table, kept apart from the
// create step so they can be applied after every table exists.
type ForeignKeyStep struct {
	Table      string
	References []string // referenced tables, in first-seen order
	Up         []Statement
	Down       []Statement
}

func (s ForeignKeyStep) empty() bool { return len(s.Up) == 0 }

// TablePlan is the planner output for one table.
type TablePlan struct {
	Create      CreateStep
	ForeignKeys ForeignKeyStep
	// Degraded holds recovered problems: unsupported types, skipped or
	// simplified indexes, keys referencing missing columns.
	Degraded []error
}

// tablePlanner turns table descriptors into create and foreign key steps.
type tablePlanner struct {
	dialect Dialect
	opts    PlanOptions
	mapper  typeMapper
}

func newTablePlanner(d Dialect, opts PlanOptions) *tablePlanner {
	if opts.IndexFeaturePolicy == "" {
		opts.IndexFeaturePolicy = IndexPolicyDegrade
	}
	return &tablePlanner{
		dialect: d,
		opts:    opts,
		mapper:  typeMapper{dialect: d, useDatabaseCollation: opts.UseDatabaseCollation},
	}
}

// planTable plans one table. The only error it returns is an unsupported
// index feature under the abort policy; everything else is recovered into
// TablePlan.Degraded.
func (p *tablePlanner) planTable(t Table) (TablePlan, error) {
	plan := TablePlan{
		Create:      CreateStep{Table: t.Name},
		ForeignKeys: ForeignKeyStep{Table: t.Name},
	}

	plan.Degraded = append(plan.Degraded, t.validate()...)

	defs, typeErrs := p.mapper.mapTableColumns(t)
	plan.Degraded = append(plan.Degraded, typeErrs...)

	chained := make(map[string][]Directive)

	if pk, ok := t.primaryKey(); ok && t.hasColumns(pk.columnNames()) && !p.foldPrimaryKey(t.Name, pk, defs) {
		st, err := p.indexStatement(t.Name, pk, &plan)
		if err != nil {
			return TablePlan{}, err
		}
		plan.Create.PrimaryKey = st
	}

	for _, idx := range t.Indexes {
		if idx.Kind == IndexPrimary || !t.hasColumns(idx.columnNames()) {
			continue
		}
		if chainableIndex(p.dialect, t.Name, idx, p.opts.IndexNaming) {
			col := idx.Columns[0].Name
			chained[col] = append(chained[col], call(idx.Kind.method()))
			continue
		}
		st, err := p.indexStatement(t.Name, idx, &plan)
		if err != nil {
			return TablePlan{}, err
		}
		if st != nil {
			plan.Create.Indexes = append(plan.Create.Indexes, *st)
		}
	}

	plan.Create.Options = p.tableOptions(t)
	plan.Create.Columns = buildColumns(defs, chained)

	seen := make(map[string]bool)
	for _, fk := range t.ForeignKeys {
		if !t.hasColumns(fk.Columns) {
			continue
		}
		up, down := buildForeignKey(p.dialect, t.Name, fk, p.opts.ForeignKeyNaming)
		plan.ForeignKeys.Up = append(plan.ForeignKeys.Up, up)
		plan.ForeignKeys.Down = append(plan.ForeignKeys.Down, down)
		if !seen[fk.RefTable] {
			seen[fk.RefTable] = true
			plan.ForeignKeys.References = append(plan.ForeignKeys.References, fk.RefTable)
		}
	}

	return plan, nil
}

// foldPrimaryKey marks the primary key column when a single auto-increment
// integer makes up the key, so the column builder emits increments().
func (p *tablePlanner) foldPrimaryKey(table string, pk Index, defs []ColumnDefinition) bool {
	if len(pk.Columns) != 1 || pk.Columns[0].Length > 0 || pk.HasExpression {
		return false
	}
	if _, emit := resolveIndexName(p.dialect, table, pk, p.opts.IndexNaming); emit {
		// A custom primary key name cannot be expressed through increments().
		return false
	}
	for i := range defs {
		if defs[i].Name != pk.Columns[0].Name {
			continue
		}
		if defs[i].Kind.isInteger() && defs[i].has(ModAutoIncrement) {
			defs[i].Primary = true
			return true
		}
		return false
	}
	return false
}

// indexStatement builds an index statement, applying the unsupported
// feature policy. It returns nil when the index is skipped.
func (p *tablePlanner) indexStatement(table string, idx Index, plan *TablePlan) (*Statement, error) {
	st, err := buildIndex(p.dialect, table, idx, p.opts.IndexNaming)
	if err == nil {
		return &st, nil
	}
	var fe *UnsupportedIndexFeatureError
	if !errors.As(err, &fe) {
		return nil, err
	}
	if p.opts.IndexFeaturePolicy == IndexPolicyAbort {
		return nil, fmt.Errorf("plan table %s: %w", table, err)
	}

	degraded, ok := degradeIndex(idx)
	if !ok {
		fe.Feature += "; index skipped"
		plan.Degraded = append(plan.Degraded, fe)
		return nil, nil
	}
	st, err = buildIndex(p.dialect, table, degraded, p.opts.IndexNaming)
	if err != nil {
		fe.Feature += "; index skipped"
		plan.Degraded = append(plan.Degraded, fe)
		return nil, nil
	}
	fe.Feature += "; emitted on full columns " + strings.Join(degraded.columnNames(), ", ")
	plan.Degraded = append(plan.Degraded, fe)
	return &st, nil
}

func (p *tablePlanner) tableOptions(t Table) []Statement {
	var opts []Statement
	if p.dialect == DialectMySQL && t.Engine != "" && !strings.EqualFold(t.Engine, "InnoDB") {
		opts = append(opts, Statement{Property: "engine", Value: t.Engine})
	}
	opts = append(opts, tableCollationStatements(t, p.opts.UseDatabaseCollation)...)
	if t.Comment != "" {
		opts = append(opts, chain(call("comment", t.Comment)))
	}
	return opts
}

// planTables plans every table in order, logging one line per table.
func (p *tablePlanner) planTables(tables []Table) ([]TablePlan, []error, error) {
	plans := make([]TablePlan, 0, len(tables))
	var degraded []error
	for _, t := range tables {
		plan, err := p.planTable(t)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("  %s (%d cols, %d indexes, %d fks)",
			t.Name, len(t.Columns), len(plan.Create.Indexes), len(plan.ForeignKeys.Up))
		plans = append(plans, plan)
		degraded = append(degraded, plan.Degraded...)
	}
	return plans, degraded, nil
}
