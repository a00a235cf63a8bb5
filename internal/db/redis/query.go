package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
)

// buildQuery translates compiled clauses into an FT.SEARCH query string (DIALECT 2).
// matchNone is set when a clause can never match, e.g. membership in an empty set.
// Clauses the schema cannot express return a *domain.ClauseError.
func buildQuery(schema map[string]db.IndexFieldType, q query.Compiled) (qs string, matchNone bool, err error) {
	var (
		parts      []string
		ranges     = map[string]*bounds{}
		rangeOrder []string
	)

	for _, c := range q.Clauses {
		ft, ok := schema[c.Field]
		if !ok {
			return "", false, domain.NewClauseError(c.Field, "not an indexed attribute")
		}

		if c.Op.IsRange() {
			if ft != db.IndexFieldNumeric {
				return "", false, domain.NewClauseError(c.Field, "range on non-numeric attribute")
			}
			v, perr := strconv.ParseFloat(c.Value, 64)
			if perr != nil {
				return "", false, domain.NewClauseError(c.Field, "range bound is not a number")
			}
			b, seen := ranges[c.Field]
			if !seen {
				b = &bounds{}
				ranges[c.Field] = b
				rangeOrder = append(rangeOrder, c.Field)
			}
			b.add(c.Op, v)
			continue
		}

		if c.Op == query.In && len(c.Values) == 0 {
			return "", true, nil
		}

		part, cerr := buildClause(c, ft)
		if cerr != nil {
			return "", false, cerr
		}
		parts = append(parts, part)
	}

	for _, field := range rangeOrder {
		parts = append(parts, ranges[field].render(field))
	}

	if q.Search != nil {
		part, serr := buildSearch(schema, q.Search)
		if serr != nil {
			return "", false, serr
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return "*", false, nil
	}
	return strings.Join(parts, " "), false, nil
}

func buildClause(c query.Clause, ft db.IndexFieldType) (string, error) {
	switch c.Op {
	case query.Eq:
		if c.Value == "" {
			return "", domain.NewClauseError(c.Field, "empty value")
		}
		if c.Bool && ft != db.IndexFieldTag {
			return "", domain.NewClauseError(c.Field, "boolean on non-tag attribute")
		}
		return buildMembership(c.Field, ft, []string{c.Value})

	case query.In:
		return buildMembership(c.Field, ft, c.Values)

	case query.Contains, query.StartsWith:
		needle := c.Pattern()
		if needle == "" {
			return "", domain.NewClauseError(c.Field, "empty pattern")
		}
		return buildPattern(c.Field, ft, c.Op, needle)
	}
	return "", domain.NewClauseError(c.Field, fmt.Sprintf("operator %q", c.Op))
}

func buildMembership(field string, ft db.IndexFieldType, values []string) (string, error) {
	switch ft {
	case db.IndexFieldTag:
		escaped := make([]string, len(values))
		for i, v := range values {
			escaped[i] = tagEscaper.Replace(v)
		}
		return fmt.Sprintf("@%s:{%s}", field, strings.Join(escaped, " | ")), nil

	case db.IndexFieldNumeric:
		terms := make([]string, len(values))
		for i, v := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return "", domain.NewClauseError(field, "value is not a number")
			}
			n := formatNumber(f)
			terms[i] = fmt.Sprintf("@%s:[%s %s]", field, n, n)
		}
		if len(terms) == 1 {
			return terms[0], nil
		}
		return "(" + strings.Join(terms, " | ") + ")", nil

	case db.IndexFieldText:
		if len(values) == 1 {
			return fmt.Sprintf("@%s:(%s)", field, escapeQuery(values[0])), nil
		}
		// Each value is a word intersection of its own.
		groups := make([]string, len(values))
		for i, v := range values {
			groups[i] = "(" + escapeQuery(v) + ")"
		}
		return fmt.Sprintf("@%s:(%s)", field, strings.Join(groups, " | ")), nil
	}
	return "", domain.NewClauseError(field, "unsupported attribute type")
}

func buildPattern(field string, ft db.IndexFieldType, op query.Op, needle string) (string, error) {
	switch ft {
	case db.IndexFieldTag:
		esc := tagEscaper.Replace(needle)
		if op == query.Contains {
			return fmt.Sprintf("@%s:{*%s*}", field, esc), nil
		}
		return fmt.Sprintf("@%s:{%s*}", field, esc), nil

	case db.IndexFieldText:
		esc := escapeQuery(needle)
		if op == query.Contains {
			return fmt.Sprintf("@%s:(w'*%s*')", field, esc), nil
		}
		return fmt.Sprintf("@%s:(%s*)", field, esc), nil
	}
	return "", domain.NewClauseError(field, "pattern match on numeric attribute")
}

func buildSearch(schema map[string]db.IndexFieldType, s *query.Search) (string, error) {
	for _, f := range s.Fields {
		if schema[f] != db.IndexFieldText {
			return "", domain.NewClauseError(f, "search field is not a text attribute")
		}
	}
	return fmt.Sprintf("@%s:(%s)", strings.Join(s.Fields, "|"), escapeQuery(s.Term)), nil
}

// bounds collects range bounds on one field, keeping the tightest on each side.
type bounds struct {
	lo, hi         *float64
	loExcl, hiExcl bool
}

func (b *bounds) add(op query.Op, v float64) {
	switch op {
	case query.Gte, query.Gt:
		excl := op == query.Gt
		if b.lo == nil || v > *b.lo || (v == *b.lo && excl) {
			b.lo, b.loExcl = &v, excl
		}
	case query.Lte, query.Lt:
		excl := op == query.Lt
		if b.hi == nil || v < *b.hi || (v == *b.hi && excl) {
			b.hi, b.hiExcl = &v, excl
		}
	}
}

func (b *bounds) render(field string) string {
	lo, hi := "-inf", "+inf"
	if b.lo != nil {
		lo = formatNumber(*b.lo)
		if b.loExcl {
			lo = "(" + lo
		}
	}
	if b.hi != nil {
		hi = formatNumber(*b.hi)
		if b.hiExcl {
			hi = "(" + hi
		}
	}
	return fmt.Sprintf("@%s:[%s %s]", field, lo, hi)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`,`, `\,`,
	`.`, `\.`,
)
