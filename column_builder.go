package main

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

const (
	laravelDefaultStringLength = 255
	laravelDefaultTotal        = 8
	laravelDefaultPlaces       = 2
	rememberTokenLength        = 100
)

// buildColumns renders the column definitions of one table in order.
// chained holds index directives to append to a column's statement.
func buildColumns(defs []ColumnDefinition, chained map[string][]Directive) []Statement {
	stmts := make([]Statement, 0, len(defs))
	for i := 0; i < len(defs); i++ {
		if i+1 < len(defs) && len(chained[defs[i].Name]) == 0 && len(chained[defs[i+1].Name]) == 0 {
			if st, ok := timestampsShortcut(defs[i], defs[i+1]); ok {
				stmts = append(stmts, st)
				i++
				continue
			}
		}
		st := buildColumn(defs[i])
		if extra := chained[defs[i].Name]; len(extra) > 0 {
			st = st.then(extra...)
		}
		stmts = append(stmts, st)
	}
	return stmts
}

// buildColumn renders one column definition: the type call followed by
// its modifiers in fixed order.
func buildColumn(def ColumnDefinition) Statement {
	if st, ok := columnShortcut(def); ok {
		return st
	}
	base, folded := typeDirective(def)
	return chain(append([]Directive{base}, modifierDirectives(def, folded, false)...)...)
}

// typeDirective returns the type call of a column and the modifiers
// already expressed by the method name.
func typeDirective(def ColumnDefinition) (Directive, map[ModifierKind]bool) {
	folded := make(map[ModifierKind]bool)
	name := def.Name
	k := def.Kind

	switch {
	case k == KindUnmapped:
		return call("addColumn", def.NativeType, name), folded

	case k.isInteger():
		unsigned := def.has(ModUnsigned)
		folded[ModUnsigned] = true
		if def.Primary && def.has(ModAutoIncrement) {
			folded[ModAutoIncrement] = true
			if unsigned || def.SignAgnostic {
				return call(incrementsMethods[k], name), folded
			}
			return call(k.method(), name, true), folded
		}
		if unsigned {
			return call("unsigned"+upperFirst(k.method()), name), folded
		}
		return call(k.method(), name), folded

	case k == KindChar || k == KindString:
		if def.Length > 0 && def.Length != laravelDefaultStringLength {
			return call(k.method(), name, def.Length), folded
		}
		return call(k.method(), name), folded

	case k == KindDecimal:
		if def.Precision == 0 || (def.Precision == laravelDefaultTotal && def.Scale == laravelDefaultPlaces) {
			return call(k.method(), name), folded
		}
		return call(k.method(), name, def.Precision, def.Scale), folded

	case k == KindFloat || k == KindDouble:
		if def.Precision == 0 {
			return call(k.method(), name), folded
		}
		return call(k.method(), name, def.Precision, def.Scale), folded

	case k.hasFractionalSeconds():
		if def.Precision > 0 {
			return call(k.method(), name, def.Precision), folded
		}
		return call(k.method(), name), folded

	case k == KindBinary:
		if def.Length > 0 && def.Fixed {
			return call(k.method(), name, def.Length, true), folded
		}
		if def.Length > 0 {
			return call(k.method(), name, def.Length), folded
		}
		return call(k.method(), name), folded

	case k == KindEnum || k == KindSet:
		values := def.Values
		if values == nil {
			values = []string{}
		}
		return call(k.method(), name, values), folded

	default:
		return call(k.method(), name), folded
	}
}

// modifierDirectives renders the modifiers of def in declaration order,
// skipping folded ones. With impliedNullable the type call is already
// nullable, so a non-nullable column gets nullable(false).
func modifierDirectives(def ColumnDefinition, folded map[ModifierKind]bool, impliedNullable bool) []Directive {
	mods := slices.Clone(def.Modifiers)
	if impliedNullable {
		if def.has(ModNullable) {
			folded[ModNullable] = true
		} else {
			mods = append(mods, Modifier{Kind: ModNullable, Value: "false"})
		}
	}
	slices.SortStableFunc(mods, func(a, b Modifier) int { return cmp.Compare(a.Kind, b.Kind) })

	var out []Directive
	for _, m := range mods {
		if folded[m.Kind] {
			continue
		}
		switch m.Kind {
		case ModUnsigned:
			out = append(out, call("unsigned"))
		case ModAutoIncrement:
			out = append(out, call("autoIncrement"))
		case ModNullable:
			if m.Value == "false" {
				out = append(out, call("nullable", false))
			} else {
				out = append(out, call("nullable"))
			}
		case ModDefault:
			out = append(out, call("default", defaultArg(def, m)))
		case ModUseCurrent:
			out = append(out, call("useCurrent"))
		case ModUseCurrentOnUpdate:
			out = append(out, call("useCurrentOnUpdate"))
		case ModComment:
			out = append(out, call("comment", m.Value))
		case ModCharset:
			out = append(out, call("charset", m.Value))
		case ModCollation:
			out = append(out, call("collation", m.Value))
		case ModStoredAs:
			out = append(out, call("storedAs", m.Value))
		case ModVirtualAs:
			out = append(out, call("virtualAs", m.Value))
		}
	}
	return out
}

// defaultArg converts a default value to the argument type Laravel expects.
func defaultArg(def ColumnDefinition, m Modifier) any {
	if m.IsExpression {
		return Expr(m.Value)
	}
	switch {
	case def.Kind == KindBoolean:
		switch strings.ToLower(m.Value) {
		case "1", "true", "t", "b'1'":
			return true
		case "0", "false", "f", "b'0'":
			return false
		}
	case def.Kind.isNumeric():
		if phpNumber(m.Value) {
			return Number(m.Value)
		}
	}
	return m.Value
}

// phpNumber reports whether s reads back unchanged as a PHP number literal.
// PHP negates after parsing the magnitude, so a magnitude beyond
// PHP_INT_MAX turns into a float.
func phpNumber(s string) bool {
	if !isNumericLiteral(s) || hasLeadingZero(s) {
		return false
	}
	if strings.Contains(s, ".") {
		return true
	}
	_, err := strconv.ParseInt(strings.TrimLeft(s, "+-"), 10, 64)
	return err == nil
}

// hasLeadingZero reports numbers like "007" that PHP would read as octal.
func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

// columnShortcut collapses the exact shapes Laravel's helper methods create.
// Near misses (another name, type or length) are left alone.
func columnShortcut(def ColumnDefinition) (Statement, bool) {
	var base Directive
	switch {
	case def.Name == "deleted_at" && (def.Kind == KindTimestamp || def.Kind == KindTimestampTz):
		method := "softDeletes"
		if def.Kind == KindTimestampTz {
			method = "softDeletesTz"
		}
		if def.Precision > 0 {
			base = call(method, def.Name, def.Precision)
		} else {
			base = call(method)
		}
	case def.Name == "remember_token" && def.Kind == KindString && def.Length == rememberTokenLength:
		base = call("rememberToken")
	default:
		return Statement{}, false
	}
	return chain(append([]Directive{base}, modifierDirectives(def, map[ModifierKind]bool{}, true)...)...), true
}

// timestampsShortcut collapses an adjacent created_at / updated_at pair
// created by timestamps() or timestampsTz().
func timestampsShortcut(created, updated ColumnDefinition) (Statement, bool) {
	if created.Name != "created_at" || updated.Name != "updated_at" {
		return Statement{}, false
	}
	if created.Kind != updated.Kind || created.Precision != updated.Precision {
		return Statement{}, false
	}
	if created.Kind != KindTimestamp && created.Kind != KindTimestampTz {
		return Statement{}, false
	}
	if !onlyNullable(created) || !onlyNullable(updated) {
		return Statement{}, false
	}
	method := "timestamps"
	if created.Kind == KindTimestampTz {
		method = "timestampsTz"
	}
	if created.Precision > 0 {
		return chain(call(method, created.Precision)), true
	}
	return chain(call(method)), true
}

func onlyNullable(def ColumnDefinition) bool {
	return len(def.Modifiers) == 1 && def.Modifiers[0].Kind == ModNullable
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
