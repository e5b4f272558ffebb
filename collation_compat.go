package main

import (
	"fmt"
	"sort"
	"strings"
)

// collationModifiers returns the charset / collation modifiers of a column.
// They are only emitted with use_db_collation, and only when the column
// differs from what it would inherit from its table.
func (m typeMapper) collationModifiers(t Table, col Column, kind ColumnKind) []Modifier {
	if !m.useDatabaseCollation || !kind.isTextual() {
		return nil
	}
	var mods []Modifier
	if col.Charset != "" && !strings.EqualFold(col.Charset, t.Charset) {
		mods = append(mods, Modifier{Kind: ModCharset, Value: col.Charset})
	}
	if col.Collation != "" && !strings.EqualFold(col.Collation, t.Collation) {
		mods = append(mods, Modifier{Kind: ModCollation, Value: col.Collation})
	}
	return mods
}

// tableCollationStatements returns the table-level charset / collation
// property assignments.
func tableCollationStatements(t Table, useDatabaseCollation bool) []Statement {
	if !useDatabaseCollation {
		return nil
	}
	var stmts []Statement
	if t.Charset != "" {
		stmts = append(stmts, Statement{Property: "charset", Value: t.Charset})
	}
	if t.Collation != "" {
		stmts = append(stmts, Statement{Property: "collation", Value: t.Collation})
	}
	return stmts
}

// collectCollationWarnings reports columns whose charset or collation
// differs from their table's when use_db_collation is off; those settings
// are dropped from the generated migrations.
func collectCollationWarnings(schema *Schema, useDatabaseCollation bool) []string {
	if schema == nil || useDatabaseCollation {
		return nil
	}

	// collation -> "table.column" refs
	overrides := make(map[string][]string)
	for _, t := range schema.Tables {
		for _, col := range t.Columns {
			if col.Collation == "" || t.Collation == "" || strings.EqualFold(col.Collation, t.Collation) {
				continue
			}
			overrides[col.Collation] = append(overrides[col.Collation], fmt.Sprintf("%s.%s", t.Name, col.Name))
		}
	}

	var warnings []string
	for _, coll := range sortedKeys(overrides) {
		refs := overrides[coll]
		warnings = append(warnings, fmt.Sprintf(
			"%d column(s) use collation %s which differs from their table and is not generated (set use_db_collation to keep it): %s",
			len(refs), coll, strings.Join(refs, ", ")))
	}
	return warnings
}

// sortedKeys returns the keys of a map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
