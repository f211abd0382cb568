package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type row map[string]any

func (r row) Field(name string) any { return r[name] }

func TestCompile(t *testing.T) {
	p := Or(
		Eq("visibility", "public_approved"),
		And(Eq("visibility", "private"), IsNull("group_id"), In("organization_id", "a", "b")),
	)
	sql, args := Compile(p, 1)
	assert.Equal(t, "(visibility = $1 OR (visibility = $2 AND group_id IS NULL AND organization_id IN ($3, $4)))", sql)
	assert.Equal(t, []any{"public_approved", "private", "a", "b"}, args)
}

func TestCompileNumbersFromFirstArg(t *testing.T) {
	sql, args := Compile(And(Gt("end_time", 1), Lte("featured", 3)), 3)
	assert.Equal(t, "(end_time > $3 AND featured <= $4)", sql)
	assert.Len(t, args, 2)
}

func TestCompileEmptySets(t *testing.T) {
	sql, args := Compile(In[string]("organization_id"), 1)
	assert.Equal(t, "FALSE", sql)
	assert.Empty(t, args)

	sql, _ = Compile(And(), 1)
	assert.Equal(t, "TRUE", sql)
	sql, _ = Compile(Or(), 1)
	assert.Equal(t, "FALSE", sql)
	sql, _ = Compile(nil, 1)
	assert.Equal(t, "TRUE", sql)
}

func TestCompileFlattensNestedJunctions(t *testing.T) {
	sql, _ := Compile(And(Eq("a", 1), And(Eq("b", 2), Eq("c", 3))), 1)
	assert.Equal(t, "(a = $1 AND b = $2 AND c = $3)", sql)
}

func TestCompileContainsEscapesWildcards(t *testing.T) {
	sql, args := Compile(Contains("50%_off", "title", "location"), 1)
	assert.Equal(t, "(title ILIKE $1 OR location ILIKE $1)", sql)
	assert.Equal(t, []any{`%50\%\_off%`}, args)
}

func TestCompileExistsAndNot(t *testing.T) {
	link := Link{Table: "event_tags", FK: "event_id", Ref: "events.id", Col: "tag_id"}
	sql, args := Compile(Not(Exists(link, "t1")), 1)
	assert.Equal(t, "NOT (EXISTS (SELECT 1 FROM event_tags WHERE event_tags.event_id = events.id AND event_tags.tag_id = $1))", sql)
	assert.Equal(t, []any{"t1"}, args)
}

func TestMatch(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := row{
		"visibility": "private",
		"group_id":   nil,
		"title":      "Spring Concert",
		"end_time":   now,
		"featured":   2,
		"event_tags": []string{"t1", "t2"},
	}
	link := Link{Table: "event_tags", FK: "event_id", Ref: "events.id", Col: "tag_id"}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq", Eq("visibility", "private"), true},
		{"eq mismatch", Eq("visibility", "draft"), false},
		{"eq nil column", Eq("group_id", "g"), false},
		{"is null", IsNull("group_id"), true},
		{"is null set", IsNull("title"), false},
		{"in", In("visibility", "draft", "private"), true},
		{"in empty", In[string]("visibility"), false},
		{"gt time", Gt("end_time", now.Add(-time.Minute)), true},
		{"gt equal time", Gt("end_time", now), false},
		{"gte equal time", Gte("end_time", now), true},
		{"lt int", Lt("featured", 3), true},
		{"lte int", Lte("featured", 1), false},
		{"type mismatch", Gt("featured", now), false},
		{"contains case-insensitive", Contains("concert", "description", "title"), true},
		{"contains miss", Contains("opera", "title"), false},
		{"exists", Exists(link, "t2"), true},
		{"exists miss", Exists(link, "t3"), false},
		{"not", Not(Eq("visibility", "private")), false},
		{"and", And(Eq("visibility", "private"), IsNull("group_id")), true},
		{"and short", And(Eq("visibility", "private"), False()), false},
		{"or", Or(False(), Eq("featured", 2)), true},
		{"empty and", And(), true},
		{"empty or", Or(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Match(r))
		})
	}
}
