package tables

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Op is a filter operator in the backend's column=op.value notation.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Filter restricts rows on one column.
type Filter struct {
	Column string
	Op     Op
	Value  string
}

// Order sorts on one column.
type Order struct {
	Column string
	Desc   bool
}

// Query is the filter/order/select expression passed with every verb.
type Query struct {
	Filters []Filter
	Order   []Order
	Select  []string
	Limit   int
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: fmt.Sprint(value)}
}

// In builds a membership filter.
func In(column string, values ...string) Filter {
	return Filter{Column: column, Op: OpIn, Value: "(" + strings.Join(values, ",") + ")"}
}

// Where returns a query with the given filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// OrderBy returns a copy of q sorted by column.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = append(q.Order[:len(q.Order):len(q.Order)], Order{Column: column, Desc: desc})
	return q
}

// Columns returns a copy of q selecting only the given columns.
func (q Query) Columns(cols ...string) Query {
	q.Select = cols
	return q
}

// WithLimit returns a copy of q with a row limit.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// reserved query parameters that are not column filters.
var reserved = map[string]bool{"select": true, "order": true, "limit": true, "on_conflict": true}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+f.Value)
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if len(q.Select) > 0 {
		v.Set("select", strings.Join(q.Select, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// ParseQuery decodes URL query parameters produced by Query.Values.
func ParseQuery(v url.Values) (Query, error) {
	var q Query
	for col, vals := range v {
		if reserved[col] {
			continue
		}
		for _, raw := range vals {
			op, val, ok := strings.Cut(raw, ".")
			if !ok {
				return Query{}, fmt.Errorf("filter %s=%q: missing operator", col, raw)
			}
			switch Op(op) {
			case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn:
			default:
				return Query{}, fmt.Errorf("filter %s: unknown operator %q", col, op)
			}
			q.Filters = append(q.Filters, Filter{Column: col, Op: Op(op), Value: val})
		}
	}
	if s := v.Get("order"); s != "" {
		for _, part := range strings.Split(s, ",") {
			col, dir, _ := strings.Cut(part, ".")
			if col == "" {
				return Query{}, fmt.Errorf("order %q: empty column", s)
			}
			q.Order = append(q.Order, Order{Column: col, Desc: dir == "desc"})
		}
	}
	if s := v.Get("select"); s != "" && s != "*" {
		q.Select = strings.Split(s, ",")
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("limit %q: not a non-negative integer", s)
		}
		q.Limit = n
	}
	return q, nil
}
