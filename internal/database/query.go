package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Query builds PostgREST query strings. Parameter order is preserved.
type Query struct {
	parts []string
	order []string
}

// NewQuery starts an empty query.
func NewQuery() *Query {
	return &Query{}
}

func (q *Query) filter(column, op, value string) *Query {
	q.parts = append(q.parts, url.QueryEscape(column)+"="+op+"."+url.QueryEscape(value))
	return q
}

func (q *Query) Eq(column, value string) *Query  { return q.filter(column, "eq", value) }
func (q *Query) Neq(column, value string) *Query { return q.filter(column, "neq", value) }
func (q *Query) Gt(column, value string) *Query  { return q.filter(column, "gt", value) }
func (q *Query) Gte(column, value string) *Query { return q.filter(column, "gte", value) }
func (q *Query) Lt(column, value string) *Query  { return q.filter(column, "lt", value) }
func (q *Query) Lte(column, value string) *Query { return q.filter(column, "lte", value) }
func (q *Query) Is(column, value string) *Query  { return q.filter(column, "is", value) }
func (q *Query) EqBool(column string, v bool) *Query {
	return q.filter(column, "eq", fmt.Sprintf("%t", v))
}

// ILike adds a case-insensitive pattern match; * is the wildcard.
func (q *Query) ILike(column, pattern string) *Query {
	return q.filter(column, "ilike", pattern)
}

// GteInt and LteInt filter integer columns.
func (q *Query) GteInt(column string, v int64) *Query { return q.filter(column, "gte", fmt.Sprint(v)) }
func (q *Query) LteInt(column string, v int64) *Query { return q.filter(column, "lte", fmt.Sprint(v)) }

// LtTime filters timestamps strictly before t.
func (q *Query) LtTime(column string, t time.Time) *Query {
	return q.filter(column, "lt", t.UTC().Format(time.RFC3339Nano))
}

// GtTime filters timestamps strictly after t.
func (q *Query) GtTime(column string, t time.Time) *Query {
	return q.filter(column, "gt", t.UTC().Format(time.RFC3339Nano))
}

// In filters column to one of values. Values are double-quoted for PostgREST.
func (q *Query) In(column string, values []string) *Query {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, `"`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
	}
	q.parts = append(q.parts, url.QueryEscape(column)+"=in."+url.QueryEscape("("+strings.Join(quoted, ",")+")"))
	return q
}

// Or adds a raw PostgREST or=(...) group, e.g. "name.ilike.*rose*,city.ilike.*rose*".
func (q *Query) Or(expr string) *Query {
	q.parts = append(q.parts, "or="+url.QueryEscape("("+expr+")"))
	return q
}

func (q *Query) Select(columns string) *Query {
	q.parts = append(q.parts, "select="+url.QueryEscape(columns))
	return q
}

// OrderAsc and OrderDesc accumulate into a single order parameter.
func (q *Query) OrderAsc(column string) *Query {
	q.order = append(q.order, url.QueryEscape(column)+".asc")
	return q
}

func (q *Query) OrderDesc(column string) *Query {
	q.order = append(q.order, url.QueryEscape(column)+".desc")
	return q
}

func (q *Query) Limit(n int) *Query {
	if n > 0 {
		q.parts = append(q.parts, fmt.Sprintf("limit=%d", n))
	}
	return q
}

func (q *Query) Offset(n int) *Query {
	if n > 0 {
		q.parts = append(q.parts, fmt.Sprintf("offset=%d", n))
	}
	return q
}

// Build renders the query string without a leading '?'.
func (q *Query) Build() string {
	parts := q.parts
	if len(q.order) > 0 {
		parts = append(append([]string(nil), parts...), "order="+strings.Join(q.order, ","))
	}
	return strings.Join(parts, "&")
}
