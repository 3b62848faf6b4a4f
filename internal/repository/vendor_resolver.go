package repository

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/BazaarDev/bazaar_api/internal/cache"
	"github.com/BazaarDev/bazaar_api/internal/normalize"
	"github.com/BazaarDev/bazaar_api/internal/store"
)

// VendorCandidate describes one relation that may hold a vendor row, and
// which of its columns carry the identity, the linked user id, and the
// numeric vendor number. Candidates are probed in slice order; ordering
// encodes precedence (core table first, views later).
type VendorCandidate struct {
	Relation       string
	IDColumn       string
	UserIDColumn   string
	VendorNoColumn string
}

// OwnerResolver upgrades opaque owner keys into strict numeric vendor ids by
// probing an ordered list of candidate vendor relations. It performs no
// reconciliation across relations: the first candidate that yields a row wins.
type OwnerResolver struct {
	store           *store.Store
	candidates      []VendorCandidate
	profileRelation string
	cache           *cache.ResolverCache
}

// NewOwnerResolver constructs an OwnerResolver. cache may be nil.
func NewOwnerResolver(st *store.Store, candidates []VendorCandidate, profileRelation string, c *cache.ResolverCache) *OwnerResolver {
	return &OwnerResolver{
		store:           st,
		candidates:      candidates,
		profileRelation: profileRelation,
		cache:           c,
	}
}

// ResolveNumericID searches the candidate relations for a row matching the
// owner key (by identity, then by linked user id) and returns its strict
// numeric vendor reference. The search continues past candidates whose match
// carries no numeric reference; it returns false only when no candidate
// yields one, in which case callers fall back to the string-owner path.
func (r *OwnerResolver) ResolveNumericID(ctx context.Context, key string) (int64, bool) {
	if key == "" {
		return 0, false
	}
	if id, ok := r.cache.Get(ctx, key); ok {
		return id, true
	}

	for _, cand := range r.candidates {
		row, err := r.lookup(ctx, cand, key)
		if err != nil {
			log.Debug().Err(err).Str("relation", cand.Relation).Msg("vendor candidate probe failed")
			continue
		}
		if row == nil {
			continue
		}
		if id, ok := numericField(row, cand.VendorNoColumn); ok {
			r.cache.Put(ctx, key, id)
			return id, true
		}
		if id, ok := numericField(row, cand.IDColumn); ok {
			r.cache.Put(ctx, key, id)
			return id, true
		}
	}
	return 0, false
}

// FindVendorByIdentity tries each candidate relation's identity lookup in
// order and short-circuits on the first match. Used for existence checks.
func (r *OwnerResolver) FindVendorByIdentity(ctx context.Context, rawID string) (string, store.Row, error) {
	var lastErr error
	for _, cand := range r.candidates {
		rows, err := r.store.SelectLimit(ctx, cand.Relation, store.Filter{}.Eq(cand.IDColumn, coerceKey(rawID)), 1)
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) > 0 {
			return cand.Relation, rows[0], nil
		}
	}
	return "", nil, lastErr
}

// EnsureProfile idempotently upserts the minimal profile row a product write
// needs for its ownership foreign key. It must never fail the caller's
// primary operation: failures are logged and swallowed.
func (r *OwnerResolver) EnsureProfile(ctx context.Context, ownerID int64) {
	if r.profileRelation == "" {
		return
	}
	_, err := r.store.Upsert(ctx, r.profileRelation, store.Row{"vendor_id": ownerID}, "vendor_id")
	if err != nil {
		log.Warn().Err(err).Int64("vendor_id", ownerID).
			Str("relation", r.profileRelation).
			Msg("owner profile upsert failed")
	}
}

// lookup probes one candidate: identity column first, then the linked user id
// column when the candidate has one.
func (r *OwnerResolver) lookup(ctx context.Context, cand VendorCandidate, key string) (store.Row, error) {
	rows, err := r.store.SelectLimit(ctx, cand.Relation, store.Filter{}.Eq(cand.IDColumn, coerceKey(key)), 1)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	if cand.UserIDColumn == "" {
		return nil, nil
	}
	rows, err = r.store.SelectLimit(ctx, cand.Relation, store.Filter{}.Eq(cand.UserIDColumn, key), 1)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	return nil, nil
}

// coerceKey passes numeric keys as integers so they compare cleanly against
// numeric identity columns.
func coerceKey(key string) any {
	if normalize.NumericString(key) {
		if n, err := strconv.ParseInt(key, 10, 64); err == nil {
			return n
		}
	}
	return key
}

// numericField extracts a strictly-numeric value from the named column.
func numericField(row store.Row, column string) (int64, bool) {
	if column == "" {
		return 0, false
	}
	switch v := row[column].(type) {
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	case string:
		if normalize.NumericString(v) {
			n, err := strconv.ParseInt(v, 10, 64)
			return n, err == nil
		}
		return 0, false
	default:
		return 0, false
	}
}
