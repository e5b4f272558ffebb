package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// generation is everything one run derives from a schema.
type generation struct {
	Schema   *Schema
	Plan     EmissionPlan
	Degraded []error
	Warnings []string
}

// buildEmissionPlan turns a schema into ordered migration artifacts. It
// performs no I/O; the error is non-nil only when the abort policy stops
// the run.
func buildEmissionPlan(schema *Schema, opts PlanOptions, merged bool) (EmissionPlan, []error, error) {
	planner := newTablePlanner(schema.Dialect, opts)
	plans, degraded, err := planner.planTables(schema.Tables)
	if err != nil {
		return EmissionPlan{}, nil, err
	}
	ep := squash(plans, merged)
	ep.Views = planViews(schema.Dialect, schema.Views)
	ep.Procedures = planProcedures(schema.Dialect, schema.Procedures)
	return ep, degraded, nil
}

// collectWarnings gathers every report line for the end-of-run summary.
func collectWarnings(schema *Schema, opts PlanOptions, degraded []error) []string {
	var warnings []string
	warnings = append(warnings, degradedSummary(degraded)...)
	warnings = append(warnings, collectGeneratedColumnWarnings(schema)...)
	warnings = append(warnings, collectCollationWarnings(schema, opts.UseDatabaseCollation)...)
	warnings = append(warnings, sourceObjectWarnings(schema)...)
	return warnings
}

func newGeneration(schema *Schema, cfg *GeneratorConfig) (*generation, error) {
	opts := cfg.planOptions()
	ep, degraded, err := buildEmissionPlan(schema, opts, cfg.Squash)
	if err != nil {
		return nil, err
	}
	return &generation{
		Schema:   schema,
		Plan:     ep,
		Degraded: degraded,
		Warnings: collectWarnings(schema, opts, degraded),
	}, nil
}

func readGeneration(ctx context.Context, cfg *GeneratorConfig) (SchemaReader, *generation, error) {
	log.Printf("connecting to %s source...", cfg.Source.Type)
	reader, err := openSchemaReader(ctx, cfg.Source)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("reading %s schema...", reader.Name())
	schema, err := readSchema(ctx, reader, cfg.readOptions())
	if err != nil {
		reader.Close()
		return nil, nil, fmt.Errorf("read schema: %w", err)
	}

	log.Printf("planning migrations...")
	gen, err := newGeneration(schema, cfg)
	if err != nil {
		reader.Close()
		return nil, nil, fmt.Errorf("plan migrations: %w", err)
	}
	return reader, gen, nil
}

// confirmFunc asks whether migrations should be logged in the named source.
type confirmFunc func(source string) (bool, error)

// runGenerate reads the source, writes migration files and optionally logs
// them in the source's migrations table.
func runGenerate(ctx context.Context, cfg *GeneratorConfig, confirm confirmFunc) error {
	start := time.Now()
	reader, gen, err := readGeneration(ctx, cfg)
	if err != nil {
		return err
	}
	defer reader.Close()

	w := cfg.writer()
	log.Printf("writing %d migration(s) to %s...", len(gen.Plan.Artifacts()), w.Dir)
	names, err := w.Write(gen.Plan)
	if err != nil {
		return fmt.Errorf("write migrations: %w", err)
	}

	printWarnings(gen.Warnings)

	shouldLog, err := shouldLogMigrations(cfg, reader.Name(), confirm)
	if err != nil {
		return err
	}
	if shouldLog && len(names) > 0 {
		exec, err := reader.Executor(ctx)
		if err != nil {
			return err
		}
		if _, err := logMigrations(ctx, exec, reader.Dialect(), names, cfg.batch); err != nil {
			return fmt.Errorf("log migrations: %w", err)
		}
	}

	log.Printf("generated %d migration(s) in %s", len(names), time.Since(start).Round(time.Millisecond))
	return nil
}

func shouldLogMigrations(cfg *GeneratorConfig, source string, confirm confirmFunc) (bool, error) {
	switch {
	case cfg.Log.Skip:
		return false, nil
	case cfg.batch != nil:
		return true, nil
	case cfg.NoInteraction || confirm == nil:
		return false, nil
	}
	ok, err := confirm(source)
	if err != nil {
		return false, fmt.Errorf("confirm logging: %w", err)
	}
	return ok, nil
}

// runPlan reads the source and prints the emission plan as YAML.
func runPlan(ctx context.Context, cfg *GeneratorConfig, out io.Writer) error {
	reader, gen, err := readGeneration(ctx, cfg)
	if err != nil {
		return err
	}
	defer reader.Close()

	report := newPlanReport(gen, cfg.writer())
	if err := writePlanYAML(out, report); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	printWarnings(gen.Warnings)
	return nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		log.Printf("  WARN: %s", w)
	}
}
