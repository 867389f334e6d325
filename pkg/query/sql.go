package query

import (
	"fmt"
	"strings"
)

// SQL renders the filter as a WHERE-clause fragment with numbered
// placeholders starting at $start. columns maps filter fields to column
// names; a field with no column is an error.
func (f Filter) SQL(columns map[string]string, start int) (string, []interface{}, error) {
	b := &sqlBuilder{columns: columns, next: start}
	clause, err := b.build(f)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

type sqlBuilder struct {
	columns map[string]string
	next    int
	args    []interface{}
}

func (b *sqlBuilder) placeholder(v interface{}) string {
	b.args = append(b.args, v)
	p := fmt.Sprintf("$%d", b.next)
	b.next++
	return p
}

func (b *sqlBuilder) build(f Filter) (string, error) {
	switch {
	case f.none:
		return "1=0", nil
	case len(f.And) > 0:
		return b.join(f.And, " AND ")
	case len(f.Or) > 0:
		return b.join(f.Or, " OR ")
	case f.Field == "":
		return "1=1", nil
	}

	column, ok := b.columns[f.Field]
	if !ok {
		return "", fmt.Errorf("no column for filter field %q", f.Field)
	}

	switch f.Op {
	case OpEq:
		return column + " = " + b.placeholder(f.Value), nil
	case OpBeginsWith:
		return column + " LIKE " + b.placeholder(escapeLike(f.Value)+"%") + ` ESCAPE '\'`, nil
	case OpIn:
		if len(f.Values) == 0 {
			return "1=0", nil
		}
		ph := make([]string, len(f.Values))
		for i, v := range f.Values {
			ph[i] = b.placeholder(v)
		}
		return column + " IN (" + strings.Join(ph, ", ") + ")", nil
	default:
		return "", fmt.Errorf("unsupported operator %q", f.Op)
	}
}

func (b *sqlBuilder) join(filters []Filter, sep string) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, sub := range filters {
		clause, err := b.build(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// escapeLike escapes LIKE wildcards so hierarchy names containing % or _
// are matched literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
