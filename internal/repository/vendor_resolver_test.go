package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BazaarDev/bazaar_api/internal/store"
)

func testResolver(t *testing.T) (*OwnerResolver, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	topo := DefaultTopology()
	return NewOwnerResolver(st, topo.VendorCandidates, topo.ProfileRelation, nil), st
}

func TestResolveNumericIDFromCoreTable(t *testing.T) {
	r, st := testResolver(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "vendors", store.Row{"id": int64(11), "name": "Shop", "vendor_no": "501"})
	require.NoError(t, err)

	id, ok := r.ResolveNumericID(ctx, "11")
	require.True(t, ok)
	// vendor_no takes priority over the row id.
	assert.Equal(t, int64(501), id)
}

func TestResolveNumericIDFallsBackToRowID(t *testing.T) {
	r, st := testResolver(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "vendors", store.Row{"id": int64(11), "name": "Shop"})
	require.NoError(t, err)

	id, ok := r.ResolveNumericID(ctx, "11")
	require.True(t, ok)
	assert.Equal(t, int64(11), id)
}

func TestResolveNumericIDByLinkedUser(t *testing.T) {
	r, st := testResolver(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "vendors", store.Row{"id": int64(30), "user_id": int64(77), "name": "Shop"})
	require.NoError(t, err)

	id, ok := r.ResolveNumericID(ctx, "77")
	require.True(t, ok)
	assert.Equal(t, int64(30), id)
}

func TestResolveNumericIDContinuesPastNonNumericMatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// The first candidate matches the key but carries no usable numeric
	// reference anywhere; the search must continue to the next candidate
	// instead of giving up.
	candidates := []VendorCandidate{
		{Relation: "vendor_accounts", IDColumn: "name", VendorNoColumn: "vendor_no"},
		{Relation: "vendors", IDColumn: "name", VendorNoColumn: "id"},
	}
	r := NewOwnerResolver(st, candidates, "seller_profiles", nil)

	_, err := st.Insert(ctx, "vendor_accounts", store.Row{"name": "acme", "vendor_no": "V-ACME"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "vendors", store.Row{"id": int64(44), "name": "acme"})
	require.NoError(t, err)

	id, ok := r.ResolveNumericID(ctx, "acme")
	require.True(t, ok)
	assert.Equal(t, int64(44), id)
}

func TestResolveNumericIDUnknownKey(t *testing.T) {
	r, _ := testResolver(t)

	_, ok := r.ResolveNumericID(context.Background(), "abc-123")
	assert.False(t, ok)

	_, ok = r.ResolveNumericID(context.Background(), "")
	assert.False(t, ok)
}

func TestFindVendorByIdentityShortCircuits(t *testing.T) {
	r, st := testResolver(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "vendors", store.Row{"id": int64(3), "name": "First"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "vendor_accounts", store.Row{"id": int64(3), "name": "Second"})
	require.NoError(t, err)

	rel, row, err := r.FindVendorByIdentity(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "vendors", rel)
	assert.Equal(t, "First", row["name"])
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	r, st := testResolver(t)
	ctx := context.Background()

	r.EnsureProfile(ctx, 99)
	r.EnsureProfile(ctx, 99)

	rows, err := st.Select(ctx, "seller_profiles", store.Filter{}.Eq("vendor_id", int64(99)))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnsureProfileSwallowsFailures(t *testing.T) {
	st := newTestStore(t)
	r := NewOwnerResolver(st, DefaultTopology().VendorCandidates, "missing_profiles", nil)

	// Must not panic or surface the error.
	r.EnsureProfile(context.Background(), 1)
}
