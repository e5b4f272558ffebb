package main

import (
	"fmt"
	"strings"
)

// IndexFeaturePolicy decides what happens to indexes the builder cannot express.
type IndexFeaturePolicy string

const (
	IndexPolicyDegrade IndexFeaturePolicy = "degrade"
	IndexPolicyAbort   IndexFeaturePolicy = "abort"
)

// indexUnsupportedFeature returns the first feature of idx that cannot be
// written as a Blueprint call for the dialect.
func indexUnsupportedFeature(d Dialect, idx Index) (string, bool) {
	if idx.HasExpression {
		return "expression index key-parts are not supported", true
	}
	if idx.Partial {
		return "partial indexes (WHERE clause) are not supported", true
	}
	if idx.hasPrefix() && !d.supportsPrefixIndex() {
		return fmt.Sprintf("prefix index lengths are not supported on %s", d.displayName()), true
	}
	if len(idx.Columns) == 0 {
		return "index has no plain column key-parts", true
	}
	return "", false
}

// degradeIndex strips what cannot be expressed. ok is false when nothing
// usable remains and the index has to be skipped.
func degradeIndex(idx Index) (Index, bool) {
	out := idx
	out.HasExpression = false
	out.Partial = false
	out.Columns = make([]IndexColumn, 0, len(idx.Columns))
	for _, c := range idx.Columns {
		if c.Name == "" {
			continue
		}
		out.Columns = append(out.Columns, IndexColumn{Name: c.Name})
	}
	return out, len(out.Columns) > 0
}

// indexColumnsArg builds the column argument of an index call: a single
// name, or a list when there are several key parts. Prefix lengths become
// raw key parts.
func indexColumnsArg(d Dialect, idx Index) any {
	if !idx.hasPrefix() {
		names := idx.columnNames()
		if len(names) == 1 {
			return names[0]
		}
		return names
	}
	parts := make([]any, len(idx.Columns))
	for i, c := range idx.Columns {
		if c.Length > 0 {
			parts[i] = Expr(fmt.Sprintf("%s(%d)", d.quoteIdentifier(c.Name), c.Length))
		} else {
			parts[i] = c.Name
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts
}

// buildIndex renders one index or primary key.
func buildIndex(d Dialect, table string, idx Index, naming NamingOptions) (Statement, error) {
	if feature, unsupported := indexUnsupportedFeature(d, idx); unsupported {
		return Statement{}, &UnsupportedIndexFeatureError{Table: table, Index: idx.Name, Feature: feature}
	}
	args := []any{indexColumnsArg(d, idx)}
	name, emit := resolveIndexName(d, table, idx, naming)
	// A raw key part has no derivable name, so the stored one is always kept.
	// MySQL ignores the name of a primary key but Blueprint still needs one.
	switch {
	case !idx.hasPrefix():
	case idx.Kind == IndexPrimary && !emit:
		name, emit = "primary", true
	case idx.Name != "" && idx.Kind != IndexPrimary:
		name, emit = idx.Name, true
	}
	if emit {
		args = append(args, name)
	}
	return chain(call(idx.Kind.method(), args...)), nil
}

// chainableIndex reports whether idx can be written as a modifier on its
// column (->unique(), ->index(), ...) instead of a separate statement.
func chainableIndex(d Dialect, table string, idx Index, naming NamingOptions) bool {
	if idx.Kind == IndexPrimary || len(idx.Columns) != 1 || idx.hasPrefix() {
		return false
	}
	if _, unsupported := indexUnsupportedFeature(d, idx); unsupported {
		return false
	}
	_, emit := resolveIndexName(d, table, idx, naming)
	return !emit
}

// foreignKeyAction normalizes a referential action. Empty means the
// engine default and is not written.
func foreignKeyAction(rule string) string {
	r := strings.ToLower(strings.TrimSpace(rule))
	switch r {
	case "", "restrict", "no action":
		return ""
	}
	return r
}

// buildForeignKey renders the up and down statements of one foreign key.
func buildForeignKey(d Dialect, table string, fk ForeignKey, naming NamingOptions) (Statement, Statement) {
	derived := defaultForeignKeyName(table, fk.Columns)
	name, emit := resolveName(d, fk.Name, derived, naming)

	args := []any{listOrSingle(fk.Columns)}
	if emit {
		args = append(args, name)
	}
	up := chain(
		call("foreign", args...),
		call("references", listOrSingle(fk.RefColumns)),
		call("on", fk.RefTable),
	)
	if a := foreignKeyAction(fk.UpdateRule); a != "" {
		up = up.then(call("onUpdate", a))
	}
	if a := foreignKeyAction(fk.DeleteRule); a != "" {
		up = up.then(call("onDelete", a))
	}

	var down Statement
	switch {
	case emit:
		down = chain(call("dropForeign", name))
	case fk.Name != "" && !naming.ForceDefault:
		down = chain(call("dropForeign", fk.Name))
	default:
		// Laravel derives the default name from a column list.
		down = chain(call("dropForeign", fk.Columns))
	}
	return up, down
}

func listOrSingle(names []string) any {
	if len(names) == 1 {
		return names[0]
	}
	return names
}
