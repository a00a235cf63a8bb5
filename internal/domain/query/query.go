// Package query compiles loosely-typed request parameters into an engine-agnostic
// conjunction of filter clauses.
package query

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Op is a clause operator.
type Op string

// Supported operators.
const (
	Eq         Op = "eq"
	In         Op = "in"
	Gte        Op = "gte"
	Lte        Op = "lte"
	Gt         Op = "gt"
	Lt         Op = "lt"
	Contains   Op = "contains"
	StartsWith Op = "starts_with"
)

// IsRange reports whether the operator is a single range bound.
func (o Op) IsRange() bool {
	switch o {
	case Gte, Lte, Gt, Lt:
		return true
	}
	return false
}

// Reserved control parameters, never compiled into clauses.
const (
	ParamPage     = "page"
	ParamPerPage  = "per_page"
	ParamSearch   = "search"
	ParamOrdering = "ordering"
)

var keyRegex = regexp.MustCompile(`^(?P<field>[\w.]+?)(?:__(?P<op>in|gte|lte|gt|lt|icontains|istartswith))?$`)

var suffixOps = map[string]Op{
	"":            Eq,
	"in":          In,
	"gte":         Gte,
	"lte":         Lte,
	"gt":          Gt,
	"lt":          Lt,
	"icontains":   Contains,
	"istartswith": StartsWith,
}

// Clause is one AND'd predicate.
type Clause struct {
	Key    string // raw parameter key, empty for synthesized clauses
	Field  string
	Op     Op
	Value  string
	Values []string // In only
	// Bool marks a boolean equality; Value is then "true" or "false".
	Bool bool
	// Nested is the segment before the first '.', a hint for sub-document scoping.
	Nested string
	// Degraded marks a key that could not be parsed; the clause is an equality on the raw key.
	Degraded bool
}

// Pattern returns the lower-cased needle of a Contains or StartsWith clause without wildcards.
func (c Clause) Pattern() string {
	if c.Op == Contains {
		return strings.TrimSuffix(strings.TrimPrefix(c.Value, "*"), "*")
	}
	return c.Value
}

// Search is a free-text best-match term over a set of fields.
type Search struct {
	Term   string
	Fields []string
}

// Ordering is a single sort key.
type Ordering struct {
	Field string
	Desc  bool
}

// Compiled is a conjunction of clauses with optional free-text search and ordering.
type Compiled struct {
	Clauses  []Clause
	Search   *Search
	Ordering *Ordering
}

// Compile turns a flat parameter map into clauses, one per non-reserved key.
func Compile(params map[string]string) Compiled {
	values := make(url.Values, len(params))
	for k, v := range params {
		values[k] = []string{v}
	}
	return CompileValues(values)
}

// CompileValues is Compile over multi-valued parameters; a repeated key yields one clause per value.
func CompileValues(params url.Values) Compiled {
	keys := make([]string, 0, len(params))
	for k := range params {
		if IsReserved(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out Compiled
	for _, k := range keys {
		for _, v := range params[k] {
			out.Clauses = append(out.Clauses, compileOne(k, v))
		}
	}
	return out
}

// IsReserved reports whether key is a control parameter.
func IsReserved(key string) bool {
	switch key {
	case ParamPage, ParamPerPage, ParamSearch, ParamOrdering:
		return true
	}
	return false
}

func compileOne(key, value string) Clause {
	m := keyRegex.FindStringSubmatch(key)
	if m == nil {
		return Clause{Key: key, Field: key, Op: Eq, Value: value, Nested: nestedOf(key), Degraded: true}
	}
	field, suffix := m[1], m[2]
	c := Clause{Key: key, Field: field, Op: suffixOps[suffix], Nested: nestedOf(field)}

	switch c.Op {
	case In:
		c.Values = strings.Split(value, ",")
	case Contains:
		c.Value = "*" + strings.ToLower(value) + "*"
	case StartsWith:
		c.Value = strings.ToLower(value)
	case Eq:
		switch lv := strings.ToLower(value); {
		case lv == "true" || lv == "false":
			c.Bool = true
			c.Value = lv
		case strings.Contains(value, ","):
			c.Op = In
			c.Values = strings.Split(value, ",")
		default:
			c.Value = value
		}
	default:
		c.Value = value
	}
	return c
}

func nestedOf(field string) string {
	if i := strings.IndexByte(field, '.'); i > 0 {
		return field[:i]
	}
	return ""
}

// Degraded returns the raw keys that compiled into degraded clauses.
func (c Compiled) Degraded() []string {
	var keys []string
	for _, cl := range c.Clauses {
		if cl.Degraded {
			keys = append(keys, cl.Key)
		}
	}
	return keys
}

// With returns a copy of c with the clauses appended.
func (c Compiled) With(clauses ...Clause) Compiled {
	out := c
	out.Clauses = make([]Clause, 0, len(c.Clauses)+len(clauses))
	out.Clauses = append(out.Clauses, c.Clauses...)
	out.Clauses = append(out.Clauses, clauses...)
	return out
}

// WithSearch returns a copy of c carrying a free-text term. A blank term or no fields is a no-op.
func (c Compiled) WithSearch(term string, fields []string) Compiled {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return c
	}
	out := c
	out.Search = &Search{Term: term, Fields: append([]string(nil), fields...)}
	return out
}

// WithOrdering returns a copy of c sorted by o. A nil o clears ordering.
func (c Compiled) WithOrdering(o *Ordering) Compiled {
	out := c
	out.Ordering = o
	return out
}

// ParseOrdering reads an ordering parameter: "field" ascending, "-field" descending.
// Only the first comma-separated key is honoured.
func ParseOrdering(raw string) *Ordering {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	desc := strings.HasPrefix(raw, "-")
	field := strings.TrimLeft(raw, "-+")
	if field == "" {
		return nil
	}
	return &Ordering{Field: field, Desc: desc}
}

// TenantClause builds the mandatory tenant membership clause.
func TenantClause(field string, ids []int64) Clause {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.FormatInt(id, 10)
	}
	return Clause{Field: field, Op: In, Values: values, Nested: nestedOf(field)}
}

// Bound builds one numeric range bound, e.g. Bound("id", Gt, 42).
func Bound(field string, op Op, v int64) Clause {
	return Clause{Field: field, Op: op, Value: strconv.FormatInt(v, 10), Nested: nestedOf(field)}
}
