package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Row is a dynamically-shaped record. The catalog relations evolved
// independently and do not share a column set, so rows are carried as maps
// and projected into typed models only at the service boundary.
type Row map[string]any

// Store provides generic tabular access to named relations. All SQL is
// written with `?` placeholders and rebound per driver, so the same code runs
// against PostgreSQL in production and SQLite in tests.
type Store struct {
	db *sqlx.DB
}

// New creates a Store over an open sqlx connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for migrations and health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Select returns all rows of the relation matching the filter.
func (s *Store) Select(ctx context.Context, relation string, f Filter) ([]Row, error) {
	return s.SelectLimit(ctx, relation, f, 0)
}

// SelectLimit returns up to limit rows of the relation matching the filter.
// A limit of 0 means no limit.
func (s *Store) SelectLimit(ctx context.Context, relation string, f Filter, limit int) ([]Row, error) {
	if err := validIdent(relation); err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + relation
	where, args := f.clause()
	if where != "" {
		query += " WHERE " + where
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, classify(relation, err)
	}
	defer rows.Close()

	return scanRows(relation, rows)
}

// Insert writes one row into the relation and returns the stored row.
func (s *Store) Insert(ctx context.Context, relation string, row Row) (Row, error) {
	if err := validIdent(relation); err != nil {
		return nil, err
	}
	cols, args, err := splitRow(row)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &Error{Relation: relation, Kind: KindOther, Err: fmt.Errorf("empty row")}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		relation,
		strings.Join(cols, ", "),
		placeholders(len(cols)),
	)

	return s.queryOne(ctx, relation, query, args)
}

// Update patches every row matching the filter and returns the affected rows.
func (s *Store) Update(ctx context.Context, relation string, f Filter, patch Row) ([]Row, error) {
	if err := validIdent(relation); err != nil {
		return nil, err
	}
	cols, args, err := splitRow(patch)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &Error{Relation: relation, Kind: KindOther, Err: fmt.Errorf("empty patch")}
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s", relation, strings.Join(sets, ", "))
	where, whereArgs := f.clause()
	if where != "" {
		query += " WHERE " + where
		args = append(args, whereArgs...)
	}
	query += " RETURNING *"

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, classify(relation, err)
	}
	defer rows.Close()

	return scanRows(relation, rows)
}

// Delete removes every row matching the filter and reports how many went away.
func (s *Store) Delete(ctx context.Context, relation string, f Filter) (int64, error) {
	if err := validIdent(relation); err != nil {
		return 0, err
	}
	query := "DELETE FROM " + relation
	where, args := f.clause()
	if where != "" {
		query += " WHERE " + where
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, classify(relation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(relation, err)
	}
	return n, nil
}

// Upsert inserts the row, or updates it in place when a row with the same
// value in conflictCol already exists. Returns the stored row.
func (s *Store) Upsert(ctx context.Context, relation string, row Row, conflictCol string) (Row, error) {
	if err := validIdent(relation); err != nil {
		return nil, err
	}
	if err := validIdent(conflictCol); err != nil {
		return nil, err
	}
	cols, args, err := splitRow(row)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &Error{Relation: relation, Kind: KindOther, Err: fmt.Errorf("empty row")}
	}

	var sets []string
	for _, c := range cols {
		if c == conflictCol {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		relation, strings.Join(cols, ", "), placeholders(len(cols)), conflictCol,
	)
	if len(sets) == 0 {
		// Nothing to update besides the key; make the insert idempotent.
		query += "DO NOTHING"
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
			return nil, classify(relation, err)
		}
		return row, nil
	}
	query += "DO UPDATE SET " + strings.Join(sets, ", ") + " RETURNING *"

	return s.queryOne(ctx, relation, query, args)
}

func (s *Store) queryOne(ctx context.Context, relation, query string, args []any) (Row, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, classify(relation, err)
	}
	defer rows.Close()

	out, err := scanRows(relation, rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &Error{Relation: relation, Kind: KindOther, Err: fmt.Errorf("no row returned")}
	}
	return out[0], nil
}

func scanRows(relation string, rows *sqlx.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		r := Row{}
		if err := rows.MapScan(r); err != nil {
			return nil, classify(relation, err)
		}
		normalizeValues(r)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(relation, err)
	}
	return out, nil
}

// normalizeValues converts driver-specific scan types into the small scalar
// set the rest of the engine expects: string, int64, float64, bool, time.Time.
func normalizeValues(r Row) {
	for k, v := range r {
		switch t := v.(type) {
		case []byte:
			r[k] = string(t)
		case time.Time:
			r[k] = t.UTC()
		}
	}
}

// splitRow flattens a row into parallel column/value slices with a stable
// column order, validating every column name.
func splitRow(row Row) ([]string, []any, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if err := validIdent(c); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	return cols, args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// validIdent rejects relation or column names that could not have come from
// our own configuration or payload keys. Identifiers are never quoted into
// SQL without passing this check.
func validIdent(name string) error {
	if name == "" {
		return &Error{Kind: KindOther, Err: fmt.Errorf("empty identifier")}
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return &Error{Kind: KindOther, Err: fmt.Errorf("invalid identifier %q", name)}
	}
	return nil
}
