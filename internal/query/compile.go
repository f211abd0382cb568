package query

import (
	"reflect"
	"strconv"
	"strings"
)

type builder struct {
	sb   strings.Builder
	args []any
	next int
}

func (b *builder) write(s string) { b.sb.WriteString(s) }

// push appends an argument and returns its placeholder.
func (b *builder) push(v any) string {
	b.args = append(b.args, v)
	n := "$" + strconv.Itoa(b.next)
	b.next++
	return n
}

func (b *builder) arg(v any) { b.write(b.push(v)) }

// Compile renders p as a PostgreSQL boolean expression. Placeholders are numbered
// from firstArg so the result can be appended to a statement that already binds
// firstArg-1 parameters.
func Compile(p Predicate, firstArg int) (string, []any) {
	if firstArg < 1 {
		firstArg = 1
	}
	b := &builder{next: firstArg}
	if p == nil {
		p = True()
	}
	p.build(b)
	return b.sb.String(), b.args
}

func sliceContains(list, v any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), v) {
			return true
		}
	}
	return false
}
