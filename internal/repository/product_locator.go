package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/normalize"
	"github.com/BazaarDev/bazaar_api/internal/store"
)

// OwnerColumns names the owner-reference encodings of one product relation,
// in probe priority order: the numeric-typed column, the string-typed column,
// and a legacy alternate column name. Empty columns are skipped.
type OwnerColumns struct {
	Relation      string
	NumericColumn string
	StringColumn  string
	AltColumn     string
}

// RelationDiagnostic records what was tried against one relation during an
// owner lookup, so empty results can be reported with full context instead of
// as errors.
type RelationDiagnostic struct {
	Relation     string   `json:"relation"`
	ColumnsTried []string `json:"columnsTried"`
	Rows         int      `json:"rows"`
	Error        string   `json:"error,omitempty"`
}

// Diagnostics aggregates per-relation lookup details.
type Diagnostics []RelationDiagnostic

// Locator finds product rows whose identity is known but whose owning
// relation is not, by probing candidate relations in a caller-supplied order.
type Locator struct {
	store *store.Store
}

// NewLocator constructs a Locator.
func NewLocator(st *store.Store) *Locator {
	return &Locator{store: st}
}

// FindByID probes each candidate relation for a row with the given identity
// and returns the first hit along with the relation it came from. The order
// of relations encodes precedence and must be explicit per call site. A miss
// everywhere returns (nil, "", nil); probe errors are carried only when no
// relation produced a row.
func (l *Locator) FindByID(ctx context.Context, id string, relations []string) (store.Row, string, error) {
	var lastErr error
	for _, rel := range relations {
		for _, key := range idProbeValues(id) {
			rows, err := l.store.SelectLimit(ctx, rel, store.Filter{}.Eq(models.ColID, key), 1)
			if err != nil {
				lastErr = err
				continue
			}
			if len(rows) > 0 {
				return rows[0], rel, nil
			}
		}
	}
	return nil, "", lastErr
}

// FindByOwner looks up all products belonging to an owner reference. For each
// relation it probes the owner-column encodings in priority order and merges
// hits into one set keyed by entity identity (or a relation-qualified
// synthetic key when identity is absent), so duplicates are impossible.
// Probing stops at the first relation that yields any row: newer entities
// live in the newer relation, so a productive relation makes scanning the
// legacy one unnecessary. Results are ordered by descending creation time,
// with missing timestamps sorting last.
func (l *Locator) FindByOwner(ctx context.Context, owner models.OwnerRef, relations []OwnerColumns) ([]store.Row, string, Diagnostics) {
	diags := make(Diagnostics, 0, len(relations))

	for _, rel := range relations {
		diag := RelationDiagnostic{Relation: rel.Relation}
		merged := make(map[string]store.Row)
		var order []string

		for _, probe := range ownerProbes(owner, rel) {
			diag.ColumnsTried = append(diag.ColumnsTried, probe.column)
			rows, err := l.store.Select(ctx, rel.Relation, store.Filter{}.Eq(probe.column, probe.value))
			if err != nil {
				diag.Error = err.Error()
				log.Debug().Err(err).
					Str("relation", rel.Relation).
					Str("column", probe.column).
					Msg("owner probe failed")
				continue
			}
			for i, row := range rows {
				key := asIdentityKey(row)
				if key == "" {
					key = fmt.Sprintf("%s#%d", rel.Relation, len(order)+i)
				}
				if _, dup := merged[key]; dup {
					continue
				}
				merged[key] = row
				order = append(order, key)
			}
		}

		diag.Rows = len(merged)
		diags = append(diags, diag)

		if len(merged) > 0 {
			out := make([]store.Row, 0, len(merged))
			for _, key := range order {
				out = append(out, merged[key])
			}
			sortByRecency(out)
			return out, rel.Relation, diags
		}
	}

	return nil, "", diags
}

type ownerProbe struct {
	column string
	value  any
}

// ownerProbes lists the column/value pairs worth trying for an owner
// reference against one relation. A numeric probe is only issued when a
// numeric form of the reference exists.
func ownerProbes(owner models.OwnerRef, rel OwnerColumns) []ownerProbe {
	var probes []ownerProbe
	if rel.NumericColumn != "" && owner.NumericID != nil {
		probes = append(probes, ownerProbe{column: rel.NumericColumn, value: *owner.NumericID})
	}
	key := owner.Key
	if key == "" && owner.NumericID != nil {
		key = fmt.Sprintf("%d", *owner.NumericID)
	}
	if key != "" {
		if rel.StringColumn != "" {
			probes = append(probes, ownerProbe{column: rel.StringColumn, value: key})
		}
		if rel.AltColumn != "" {
			probes = append(probes, ownerProbe{column: rel.AltColumn, value: key})
		}
	}
	return probes
}

// idProbeValues returns the value forms worth trying for an identity: the raw
// string, plus the integer form when the id is strictly numeric (legacy rows
// key on integer ids).
func idProbeValues(id string) []any {
	values := []any{id}
	if normalize.NumericString(id) {
		var n int64
		if _, err := fmt.Sscan(id, &n); err == nil {
			values = append(values, n)
		}
	}
	return values
}

func asIdentityKey(row store.Row) string {
	switch v := row[models.ColID].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortByRecency orders rows by descending created_at, treating a missing or
// unparsable timestamp as epoch zero so those rows sort last.
func sortByRecency(rows []store.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return createdAt(rows[i]).After(createdAt(rows[j]))
	})
}

func createdAt(row store.Row) time.Time {
	switch v := row[models.ColCreatedAt].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t
		}
	}
	return time.Time{}
}
