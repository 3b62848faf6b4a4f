package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// Kind classifies a store failure well enough for the adaptive write path to
// decide between repairing the payload, healing a missing owner row, or
// giving up on the relation.
type Kind int

const (
	// KindOther covers everything the writer must treat as fatal for the
	// current relation.
	KindOther Kind = iota
	// KindUnknownColumn means the statement referenced a column the relation
	// does not have.
	KindUnknownColumn
	// KindForeignKey means a referenced row (in practice, the owning vendor)
	// does not exist.
	KindForeignKey
	// KindNotNull means a NOT NULL column was left empty.
	KindNotNull
)

func (k Kind) String() string {
	switch k {
	case KindUnknownColumn:
		return "unknown_column"
	case KindForeignKey:
		return "foreign_key"
	case KindNotNull:
		return "not_null"
	default:
		return "other"
	}
}

// Error is the single error type the store returns for failed statements.
// It is the only place in the codebase where driver error text is inspected;
// everything above works from Kind and Column.
type Error struct {
	Relation string
	Kind     Kind
	Column   string
	Err      error
}

func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("store: %s on %s (column %s): %v", e.Kind, e.Relation, e.Column, e.Err)
	}
	return fmt.Sprintf("store: %s on %s: %v", e.Kind, e.Relation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Structured PostgreSQL error codes. Preferred over message text when the
// driver supplies them.
const (
	pgUndefinedColumn  = "42703"
	pgForeignKeyViol   = "23503"
	pgNotNullViolation = "23502"
)

// Message-text fallbacks for drivers without structured codes (SQLite in
// tests, or a proxying store). Brittle, but required to keep functioning.
var (
	reQuotedColumn   = regexp.MustCompile(`column "([^"]+)"`)
	reNoColumnNamed  = regexp.MustCompile(`has no column named (\w+)`)
	reNoSuchColumn   = regexp.MustCompile(`no such column:? "?(\w+)"?`)
	reNotNullFailed  = regexp.MustCompile(`NOT NULL constraint failed: \w+\.(\w+)`)
	reFKDetailColumn = regexp.MustCompile(`Key \((\w+)\)=`)
)

// classify wraps a driver error into *Error, tagging it with a Kind and the
// offending column when one can be recovered.
func classify(relation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}

	se := &Error{Relation: relation, Kind: KindOther, Err: err}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUndefinedColumn:
			se.Kind = KindUnknownColumn
			se.Column = firstMatch(reQuotedColumn, pqErr.Message)
		case pgForeignKeyViol:
			se.Kind = KindForeignKey
			se.Column = firstMatch(reFKDetailColumn, pqErr.Detail)
		case pgNotNullViolation:
			se.Kind = KindNotNull
			se.Column = pqErr.Column
			if se.Column == "" {
				se.Column = firstMatch(reQuotedColumn, pqErr.Message)
			}
		}
		return se
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "does not exist") && strings.Contains(lower, "column"):
		se.Kind = KindUnknownColumn
		se.Column = firstMatch(reQuotedColumn, msg)
	case strings.Contains(lower, "no column named"):
		se.Kind = KindUnknownColumn
		se.Column = firstMatch(reNoColumnNamed, msg)
	case strings.Contains(lower, "no such column"):
		se.Kind = KindUnknownColumn
		se.Column = firstMatch(reNoSuchColumn, msg)
	case strings.Contains(lower, "foreign key"):
		se.Kind = KindForeignKey
		se.Column = firstMatch(reFKDetailColumn, msg)
	case strings.Contains(lower, "not null") || strings.Contains(lower, "not-null"):
		se.Kind = KindNotNull
		if se.Column = firstMatch(reNotNullFailed, msg); se.Column == "" {
			se.Column = firstMatch(reQuotedColumn, msg)
		}
	}
	return se
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
