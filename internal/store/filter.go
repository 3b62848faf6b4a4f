package store

import "strings"

type condOp int

const (
	condEq condOp = iota
	condContains
)

type cond struct {
	column string
	op     condOp
	value  any
}

// Filter is a conjunction of column conditions. The zero value matches
// everything.
type Filter struct {
	conds []cond
}

// Eq adds an equality condition.
func (f Filter) Eq(column string, value any) Filter {
	f.conds = append(f.conds, cond{column: column, op: condEq, value: value})
	return f
}

// Contains adds a case-insensitive substring condition.
func (f Filter) Contains(column string, value string) Filter {
	f.conds = append(f.conds, cond{column: column, op: condContains, value: value})
	return f
}

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool {
	return len(f.conds) == 0
}

// clause renders the filter as a WHERE body with `?` placeholders. UPPER/LIKE
// is used instead of ILIKE so the same SQL works on PostgreSQL and SQLite.
func (f Filter) clause() (string, []any) {
	if len(f.conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(f.conds))
	args := make([]any, 0, len(f.conds))
	for _, c := range f.conds {
		if validIdent(c.column) != nil {
			continue
		}
		switch c.op {
		case condEq:
			parts = append(parts, c.column+" = ?")
			args = append(args, c.value)
		case condContains:
			parts = append(parts, "UPPER("+c.column+") LIKE UPPER(?) ESCAPE '\\'")
			args = append(args, "%"+escapeLike(c.value.(string))+"%")
		}
	}
	return strings.Join(parts, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
