package main

import "strings"

// Expr is a raw SQL expression argument, written as DB::raw('...').
type Expr string

// Number is a numeric literal argument, written without quotes.
type Number string

// Directive is one Blueprint method call.
type Directive struct {
	Method string
	Args   []any
}

func call(method string, args ...any) Directive {
	return Directive{Method: method, Args: args}
}

// Statement is one line inside a Blueprint closure: either a chain of
// method calls on $table, or a property assignment such as
// $table->engine = 'InnoDB'.
type Statement struct {
	Chain    []Directive
	Property string
	Value    any
}

func chain(ds ...Directive) Statement {
	return Statement{Chain: ds}
}

func (s Statement) then(ds ...Directive) Statement {
	out := make([]Directive, 0, len(s.Chain)+len(ds))
	out = append(out, s.Chain...)
	out = append(out, ds...)
	return Statement{Chain: out}
}

func (s Statement) methods() []string {
	m := make([]string, len(s.Chain))
	for i, d := range s.Chain {
		m[i] = d.Method
	}
	return m
}

// usesRaw reports whether rendering the statement references DB::raw.
func (s Statement) usesRaw() bool {
	if _, ok := s.Value.(Expr); ok {
		return true
	}
	for _, d := range s.Chain {
		for _, a := range d.Args {
			if argUsesRaw(a) {
				return true
			}
		}
	}
	return false
}

func argUsesRaw(a any) bool {
	switch v := a.(type) {
	case Expr:
		return true
	case []any:
		for _, x := range v {
			if argUsesRaw(x) {
				return true
			}
		}
	}
	return false
}

// php renders the statement as a PHP line on the given receiver.
func (s Statement) php(receiver string) string {
	var b strings.Builder
	b.WriteString(receiver)
	if s.Property != "" {
		b.WriteString("->")
		b.WriteString(s.Property)
		b.WriteString(" = ")
		b.WriteString(phpValue(s.Value))
		b.WriteByte(';')
		return b.String()
	}
	for _, d := range s.Chain {
		b.WriteString("->")
		b.WriteString(d.Method)
		b.WriteByte('(')
		for i, a := range d.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(phpValue(a))
		}
		b.WriteByte(')')
	}
	b.WriteByte(';')
	return b.String()
}
