package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/normalize"
	"github.com/BazaarDev/bazaar_api/internal/store"
)

// The two product relations are not under unified schema control, so
// write-time structural mismatches are expected. Instead of a hand-maintained
// per-relation field map, the writer discovers the target's shape from
// classified errors: unknown columns are stripped from the payload, a missing
// owner row is healed once via the profile upsert, and a structurally
// incompatible relation falls through to the next candidate.

const (
	// maxAttemptsPerRelation bounds the write loop per target relation.
	maxAttemptsPerRelation = 6
	// maxRelations bounds how many candidate relations a single write tries.
	maxRelations = 2
)

// WriteTarget is one candidate relation for a write, with its owner columns.
type WriteTarget struct {
	Relation           string
	OwnerNumericColumn string
	OwnerStringColumn  string
}

// WriteOp describes a single insert or update.
type WriteOp struct {
	// Targets in priority order. At most two are honored.
	Targets []WriteTarget
	Payload store.Row
	// OwnerKey is the string form of the owner reference, substituted when a
	// write falls through to a relation that cannot satisfy numeric ownership.
	OwnerKey string
	// Update makes the op patch rows matching ID instead of inserting.
	Update bool
	ID     any
}

// RelationAttempt records the outcome of trying one relation.
type RelationAttempt struct {
	Relation string
	Attempts int
	LastErr  error
}

// WriteError aggregates every relation tried by a failed write, so callers
// get full diagnostic context without understanding the retry internals.
type WriteError struct {
	Attempts []RelationAttempt
}

// RelationAttemptDetail is the serializable form of a RelationAttempt.
type RelationAttemptDetail struct {
	Relation  string `json:"relation"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError"`
}

// Details renders the attempts for diagnostic responses.
func (e *WriteError) Details() []RelationAttemptDetail {
	out := make([]RelationAttemptDetail, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = RelationAttemptDetail{Relation: a.Relation, Attempts: a.Attempts}
		if a.LastErr != nil {
			out[i].LastError = a.LastErr.Error()
		}
	}
	return out
}

func (e *WriteError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s (%d attempts): %v", a.Relation, a.Attempts, a.LastErr)
	}
	return "adaptive write failed: " + strings.Join(parts, "; ")
}

// AdaptiveWriter persists product rows while self-correcting for
// target-relation errors it cannot know about ahead of time.
type AdaptiveWriter struct {
	store    *store.Store
	resolver *OwnerResolver
}

// NewAdaptiveWriter constructs an AdaptiveWriter.
func NewAdaptiveWriter(st *store.Store, resolver *OwnerResolver) *AdaptiveWriter {
	return &AdaptiveWriter{store: st, resolver: resolver}
}

// Write runs the adaptive state machine: per relation, up to
// maxAttemptsPerRelation attempts with one foreign-key self-heal; across at
// most maxRelations relations. On success the returned row's payment-methods
// field is normalized back into canonical set form.
func (w *AdaptiveWriter) Write(ctx context.Context, op WriteOp) (store.Row, string, error) {
	targets := op.Targets
	if len(targets) > maxRelations {
		targets = targets[:maxRelations]
	}
	if len(targets) == 0 {
		return nil, "", fmt.Errorf("adaptive write: no target relation")
	}

	werr := &WriteError{}
	for i, target := range targets {
		payload := clonePayload(op.Payload)
		if i > 0 {
			// This relation was reached because the previous one could not
			// satisfy numeric ownership; carry the string form instead.
			substituteStringOwner(payload, targets[i-1], target, op.OwnerKey)
		}

		row, attempts, err := w.writeToRelation(ctx, target, payload, op)
		if err == nil {
			normalizeReturnedRow(row)
			return row, target.Relation, nil
		}
		werr.Attempts = append(werr.Attempts, RelationAttempt{
			Relation: target.Relation,
			Attempts: attempts,
			LastErr:  err,
		})
		log.Warn().Err(err).
			Str("relation", target.Relation).
			Int("attempts", attempts).
			Msg("write abandoned for relation")
	}
	return nil, "", werr
}

// writeToRelation drives the attempt loop against one relation.
func (w *AdaptiveWriter) writeToRelation(ctx context.Context, target WriteTarget, payload store.Row, op WriteOp) (store.Row, int, error) {
	attempts := 0
	fkHealed := false
	var lastErr error

	for attempts < maxAttemptsPerRelation {
		attempts++

		row, err := w.attempt(ctx, target.Relation, payload, op)
		if err == nil {
			return row, attempts, nil
		}
		lastErr = err

		se, ok := store.AsError(err)
		if !ok {
			return nil, attempts, err
		}

		switch {
		case isOwnerRefError(se, target):
			if fkHealed {
				// The heal did not take; this relation cannot satisfy the
				// ownership link. Fall through to the next candidate.
				return nil, attempts, err
			}
			fkHealed = true
			if id, ok := numericFromPayload(payload, target.OwnerNumericColumn); ok {
				w.resolver.EnsureProfile(ctx, id)
			}
			// Retry the same payload once.

		case se.Kind == store.KindUnknownColumn:
			if se.Column == "" || !stripField(payload, se.Column) {
				return nil, attempts, err
			}
			log.Debug().
				Str("relation", target.Relation).
				Str("column", se.Column).
				Msg("stripped unknown column from payload")

		default:
			return nil, attempts, err
		}
	}
	return nil, attempts, lastErr
}

func (w *AdaptiveWriter) attempt(ctx context.Context, relation string, payload store.Row, op WriteOp) (store.Row, error) {
	if !op.Update {
		return w.store.Insert(ctx, relation, payload)
	}
	rows, err := w.store.Update(ctx, relation, store.Filter{}.Eq(models.ColID, op.ID), payload)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update matched no rows in %s", relation)
	}
	return rows[0], nil
}

// isOwnerRefError reports whether the error indicates an unsatisfied owner
// reference: any foreign-key violation, or a not-null violation naming the
// owner column.
func isOwnerRefError(se *store.Error, target WriteTarget) bool {
	if se.Kind == store.KindForeignKey {
		return true
	}
	return se.Kind == store.KindNotNull &&
		target.OwnerNumericColumn != "" &&
		se.Column == target.OwnerNumericColumn
}

// substituteStringOwner strips the numeric owner field the previous relation
// required and sets the string owner field the fallback relation accepts.
func substituteStringOwner(payload store.Row, prev, next WriteTarget, ownerKey string) {
	if prev.OwnerNumericColumn != "" {
		stripField(payload, prev.OwnerNumericColumn)
	}
	if next.OwnerNumericColumn != "" {
		stripField(payload, next.OwnerNumericColumn)
	}
	if next.OwnerStringColumn != "" && ownerKey != "" {
		payload[next.OwnerStringColumn] = ownerKey
	}
}

// stripField removes a field and its camelCase/snake_case siblings from the
// payload. Reports whether anything was removed.
func stripField(payload store.Row, field string) bool {
	removed := false
	for _, name := range []string{field, toSnake(field), toCamel(field)} {
		if _, ok := payload[name]; ok {
			delete(payload, name)
			removed = true
		}
	}
	return removed
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func clonePayload(payload store.Row) store.Row {
	out := make(store.Row, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func numericFromPayload(payload store.Row, column string) (int64, bool) {
	if column == "" {
		return 0, false
	}
	if v, ok := normalize.Number(payload[column]); ok {
		return int64(v), true
	}
	return 0, false
}

// normalizeReturnedRow canonicalizes the payment-method field of a freshly
// written row before it goes back to the caller.
func normalizeReturnedRow(row store.Row) {
	if row == nil {
		return
	}
	if _, ok := row[models.ColPaymentMethods]; ok {
		row[models.ColPaymentMethods] = normalize.PaymentMethods(row[models.ColPaymentMethods])
	}
}
