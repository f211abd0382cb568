// Package query provides a small composable predicate AST used to filter event
// collections. A Predicate can be evaluated against a single record in memory and
// compiled into a PostgreSQL boolean expression with positional arguments, so the
// same filter drives both row checks and paginated list queries.
package query

import (
	"strings"
	"time"
)

// Record exposes column values to predicates evaluated in memory.
// Nullable columns must return a nil interface when unset.
type Record interface {
	Field(name string) any
}

// Predicate is a boolean filter over records.
type Predicate interface {
	// Match evaluates the predicate against r.
	Match(r Record) bool
	build(b *builder)
}

type constant bool

// True matches every record.
func True() Predicate { return constant(true) }

// False matches no record.
func False() Predicate { return constant(false) }

func (c constant) Match(Record) bool { return bool(c) }

func (c constant) build(b *builder) {
	if c {
		b.write("TRUE")
	} else {
		b.write("FALSE")
	}
}

type eq struct {
	col string
	val any
}

// Eq matches records whose column equals val.
func Eq(col string, val any) Predicate { return eq{col: col, val: val} }

func (p eq) Match(r Record) bool { return equal(r.Field(p.col), p.val) }

func (p eq) build(b *builder) {
	b.write(p.col + " = ")
	b.arg(p.val)
}

type in struct {
	col  string
	vals []any
}

// In matches records whose column equals one of vals. An empty set matches nothing.
func In[T any](col string, vals ...T) Predicate {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return in{col: col, vals: out}
}

func (p in) Match(r Record) bool {
	v := r.Field(p.col)
	for _, want := range p.vals {
		if equal(v, want) {
			return true
		}
	}
	return false
}

func (p in) build(b *builder) {
	if len(p.vals) == 0 {
		b.write("FALSE")
		return
	}
	b.write(p.col + " IN (")
	for i, v := range p.vals {
		if i > 0 {
			b.write(", ")
		}
		b.arg(v)
	}
	b.write(")")
}

type isNull struct{ col string }

// IsNull matches records whose column is unset.
func IsNull(col string) Predicate { return isNull{col: col} }

func (p isNull) Match(r Record) bool { return r.Field(p.col) == nil }

func (p isNull) build(b *builder) { b.write(p.col + " IS NULL") }

type cmpOp string

const (
	opGt  cmpOp = ">"
	opGte cmpOp = ">="
	opLt  cmpOp = "<"
	opLte cmpOp = "<="
)

type compare struct {
	col string
	op  cmpOp
	val any
}

// Gt matches records whose column is strictly greater than val (time.Time or int).
func Gt(col string, val any) Predicate { return compare{col: col, op: opGt, val: val} }

// Gte matches records whose column is greater than or equal to val.
func Gte(col string, val any) Predicate { return compare{col: col, op: opGte, val: val} }

// Lt matches records whose column is strictly less than val.
func Lt(col string, val any) Predicate { return compare{col: col, op: opLt, val: val} }

// Lte matches records whose column is less than or equal to val.
func Lte(col string, val any) Predicate { return compare{col: col, op: opLte, val: val} }

func (p compare) Match(r Record) bool {
	c, ok := order(r.Field(p.col), p.val)
	if !ok {
		return false
	}
	switch p.op {
	case opGt:
		return c > 0
	case opGte:
		return c >= 0
	case opLt:
		return c < 0
	case opLte:
		return c <= 0
	}
	return false
}

func (p compare) build(b *builder) {
	b.write(p.col + " " + string(p.op) + " ")
	b.arg(p.val)
}

type contains struct {
	term string
	cols []string
}

// Contains matches records where any of cols contains term, case-insensitively.
func Contains(term string, cols ...string) Predicate { return contains{term: term, cols: cols} }

func (p contains) Match(r Record) bool {
	needle := strings.ToLower(p.term)
	for _, c := range p.cols {
		if s, ok := r.Field(c).(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func (p contains) build(b *builder) {
	if len(p.cols) == 0 {
		b.write("FALSE")
		return
	}
	n := b.push("%" + escapeLike(p.term) + "%")
	b.write("(")
	for i, c := range p.cols {
		if i > 0 {
			b.write(" OR ")
		}
		b.write(c + " ILIKE " + n)
	}
	b.write(")")
}

// Link describes a link table joined back to the filtered table:
// Table.FK references Ref, and Table.Col is the compared column.
type Link struct {
	Table string
	FK    string
	Ref   string
	Col   string
}

type exists struct {
	link Link
	val  any
}

// Exists matches records having a row in a link table with Col = val. In memory the
// record must return the slice of linked values for Field(link.Table).
func Exists(link Link, val any) Predicate { return exists{link: link, val: val} }

func (p exists) Match(r Record) bool { return sliceContains(r.Field(p.link.Table), p.val) }

func (p exists) build(b *builder) {
	l := p.link
	b.write("EXISTS (SELECT 1 FROM " + l.Table + " WHERE " + l.Table + "." + l.FK + " = " + l.Ref + " AND " + l.Table + "." + l.Col + " = ")
	b.arg(p.val)
	b.write(")")
}

type not struct{ p Predicate }

// Not negates p.
func Not(p Predicate) Predicate { return not{p: p} }

func (n not) Match(r Record) bool { return !n.p.Match(r) }

func (n not) build(b *builder) {
	b.write("NOT (")
	n.p.build(b)
	b.write(")")
}

type junction struct {
	and   bool
	parts []Predicate
}

// And matches when every part matches. And() with no parts matches everything.
func And(parts ...Predicate) Predicate { return junction{and: true, parts: flatten(true, parts)} }

// Or matches when any part matches. Or() with no parts matches nothing.
func Or(parts ...Predicate) Predicate { return junction{and: false, parts: flatten(false, parts)} }

func flatten(and bool, parts []Predicate) []Predicate {
	out := make([]Predicate, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			continue
		}
		if j, ok := p.(junction); ok && j.and == and {
			out = append(out, j.parts...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (j junction) Match(r Record) bool {
	for _, p := range j.parts {
		if p.Match(r) != j.and {
			return !j.and
		}
	}
	return j.and
}

func (j junction) build(b *builder) {
	if len(j.parts) == 0 {
		constant(j.and).build(b)
		return
	}
	if len(j.parts) == 1 {
		j.parts[0].build(b)
		return
	}
	sep := " OR "
	if j.and {
		sep = " AND "
	}
	b.write("(")
	for i, p := range j.parts {
		if i > 0 {
			b.write(sep)
		}
		p.build(b)
	}
	b.write(")")
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	defer func() { _ = recover() }()
	return a == b
}

func order(a, b any) (int, bool) {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case int:
		y, ok := b.(int)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
