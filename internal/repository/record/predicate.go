package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
)

const tableAlias = "t"

// Dropped is a clause the store translation could not express.
type Dropped struct {
	Field  string
	Reason string
}

// selectBuilder accumulates positional arguments and WHERE predicates for one statement.
type selectBuilder struct {
	desc    *entity.Descriptor
	args    []any
	where   []string
	dropped []Dropped
}

func (b *selectBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *selectBuilder) drop(field, reason string) {
	b.dropped = append(b.dropped, Dropped{Field: field, Reason: reason})
}

func quote(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// target is a resolved clause field: the column to compare and, for relation
// fields, the relation whose rows hold it.
type target struct {
	field    entity.Field
	relation *entity.Relation
}

func (b *selectBuilder) resolve(c query.Clause) (target, string) {
	if c.Degraded {
		return target{}, "unparseable key"
	}
	if c.Nested != "" {
		rest := strings.TrimPrefix(c.Field, c.Nested+".")
		for i := range b.desc.Relations {
			rel := &b.desc.Relations[i]
			if rel.Name != c.Nested {
				continue
			}
			for _, f := range rel.Fields {
				if f.Name == rest {
					return target{field: f, relation: rel}, ""
				}
			}
		}
		return target{}, "unknown nested path"
	}
	attr, ok := b.desc.Lookup(c.Field)
	if !ok {
		return target{}, "unknown field"
	}
	return target{field: attr.Field, relation: attr.Relation}, ""
}

// addClause renders one clause, or records it as dropped.
func (b *selectBuilder) addClause(c query.Clause) {
	tg, reason := b.resolve(c)
	if reason != "" {
		b.drop(c.Field, reason)
		return
	}

	var col string
	if tg.relation != nil {
		col = quote("r", tg.field.ColumnName())
	} else {
		col = quote(tableAlias, tg.field.ColumnName())
	}

	pred, reason := b.predicate(col, tg.field.Kind, c)
	if reason != "" {
		b.drop(c.Field, reason)
		return
	}

	if tg.relation != nil {
		pred = fmt.Sprintf("%s IN (SELECT %s FROM %s r WHERE %s)",
			quote(tableAlias, tg.relation.FKColumn), quote("r", entity.IDField), quote(tg.relation.Table), pred)
	}
	b.where = append(b.where, pred)
}

func (b *selectBuilder) predicate(col string, kind entity.Kind, c query.Clause) (string, string) {
	switch c.Op {
	case query.Eq:
		if c.Value == "" {
			return "", "empty value"
		}
		v, err := coerce(kind, c.Value)
		if err != nil {
			return "", err.Error()
		}
		if kind == entity.Text {
			return b.words(col, c.Value)
		}
		if isString(kind) {
			return fmt.Sprintf("lower(%s) = %s", col, b.arg(strings.ToLower(c.Value))), ""
		}
		return fmt.Sprintf("%s = %s", col, b.arg(v)), ""

	case query.In:
		if len(c.Values) == 0 {
			return "FALSE", ""
		}
		if kind == entity.Text {
			alts := make([]string, 0, len(c.Values))
			for _, v := range c.Values {
				p, reason := b.words(col, v)
				if reason != "" {
					return "", reason
				}
				alts = append(alts, p)
			}
			return "(" + strings.Join(alts, " OR ") + ")", ""
		}
		vals, err := coerceSlice(kind, c.Values)
		if err != nil {
			return "", err.Error()
		}
		if isString(kind) {
			return fmt.Sprintf("lower(%s) = ANY(%s)", col, b.arg(vals)), ""
		}
		return fmt.Sprintf("%s = ANY(%s)", col, b.arg(vals)), ""

	case query.Gte, query.Lte, query.Gt, query.Lt:
		if kind != entity.Numeric && kind != entity.Time {
			return "", "range on non-ordered kind"
		}
		v, err := coerce(kind, c.Value)
		if err != nil {
			return "", err.Error()
		}
		return fmt.Sprintf("%s %s %s", col, rangeOps[c.Op], b.arg(v)), ""

	case query.Contains, query.StartsWith:
		if !isString(kind) {
			return "", "pattern on non-string kind"
		}
		pattern := escapeLike(c.Pattern()) + "%"
		if c.Op == query.Contains {
			pattern = "%" + pattern
		}
		return fmt.Sprintf("%s ILIKE %s", col, b.arg(pattern)), ""
	}
	return "", "unknown operator"
}

var rangeOps = map[query.Op]string{
	query.Gte: ">=",
	query.Lte: "<=",
	query.Gt:  ">",
	query.Lt:  "<",
}

// addSearch renders the free-text term as an OR of substring matches over the search fields.
func (b *selectBuilder) addSearch(s *query.Search) {
	if s == nil || strings.TrimSpace(s.Term) == "" {
		return
	}
	var ors []string
	var placeholder string
	for _, name := range s.Fields {
		attr, ok := b.desc.Lookup(name)
		if !ok || !isString(attr.Field.Kind) {
			b.drop(name, "not a searchable field")
			continue
		}
		if placeholder == "" {
			placeholder = b.arg("%" + escapeLike(s.Term) + "%")
		}
		if attr.Flattened() {
			ors = append(ors, fmt.Sprintf("%s IN (SELECT %s FROM %s r WHERE %s ILIKE %s)",
				quote(tableAlias, attr.Relation.FKColumn), quote("r", entity.IDField),
				quote(attr.Relation.Table), quote("r", attr.Field.ColumnName()), placeholder))
			continue
		}
		ors = append(ors, fmt.Sprintf("%s ILIKE %s", quote(tableAlias, attr.Field.ColumnName()), placeholder))
	}
	if len(ors) > 0 {
		b.where = append(b.where, "("+strings.Join(ors, " OR ")+")")
	}
}

// orderBy renders the ordering, id breaking ties. Fields outside the ordering set are dropped.
func (b *selectBuilder) orderBy(o *query.Ordering) string {
	idDesc := quote(tableAlias, entity.IDField) + " DESC"
	if o == nil || o.Field == entity.IDField && o.Desc {
		return idDesc
	}
	if !b.desc.IsOrderable(o.Field) {
		b.drop(o.Field, "not orderable")
		return idDesc
	}
	attr, _ := b.desc.Lookup(o.Field)
	dir := " ASC"
	if o.Desc {
		dir = " DESC"
	}
	if o.Field == entity.IDField {
		return quote(tableAlias, entity.IDField) + dir
	}
	return quote(tableAlias, attr.Field.ColumnName()) + dir + ", " + idDesc
}

func isString(k entity.Kind) bool {
	return k == entity.Text || k == entity.Tag
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// words matches a TEXT column the way the index does: every word of v must
// occur in col as a whole word, case-insensitively. Stemming is not reproduced.
func (b *selectBuilder) words(col, v string) (string, string) {
	ws := strings.FieldsFunc(strings.ToLower(v), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(ws) == 0 {
		return "", "no words in value"
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprintf("%s ~* %s", col, b.arg(`\m`+w+`\M`))
	}
	return "(" + strings.Join(parts, " AND ") + ")", ""
}

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// coerce converts a query string into the Go type the column kind expects.
func coerce(kind entity.Kind, s string) (any, error) {
	switch kind {
	case entity.Numeric:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not numeric", s)
		}
		return f, nil
	case entity.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("value %q is not boolean", s)
		}
		return v, nil
	case entity.Time:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("value %q is not a timestamp", s)
	}
	return s, nil
}

func coerceSlice(kind entity.Kind, in []string) (any, error) {
	switch kind {
	case entity.Numeric:
		ints := make([]int64, 0, len(in))
		for _, s := range in {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				break
			}
			ints = append(ints, i)
		}
		if len(ints) == len(in) {
			return ints, nil
		}
		floats := make([]float64, len(in))
		for i, s := range in {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not numeric", s)
			}
			floats[i] = f
		}
		return floats, nil
	case entity.Bool:
		out := make([]bool, len(in))
		for i, s := range in {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("value %q is not boolean", s)
			}
			out[i] = v
		}
		return out, nil
	case entity.Time:
		out := make([]time.Time, len(in))
		for i, s := range in {
			v, err := coerce(kind, s)
			if err != nil {
				return nil, err
			}
			out[i] = v.(time.Time)
		}
		return out, nil
	}
	lowered := make([]string, len(in))
	for i, s := range in {
		lowered[i] = strings.ToLower(s)
	}
	return lowered, nil
}
