package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BazaarDev/bazaar_api/internal/models"
)

func ownerNumeric(id int64, key string) models.OwnerRef {
	return models.OwnerRef{NumericID: &id, Key: key}
}

func TestFindByIDProbesRelationsInOrder(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)
	ctx := context.Background()

	seedProfile(t, st, 1)
	seedVendorProduct(t, st, "p-new", 1, "2024-01-01 00:00:00")
	seedShopProduct(t, st, "p-old", "k", "2024-01-01 00:00:00")

	row, rel, err := loc.FindByID(ctx, "p-new", []string{"vendor_products", "shop_products"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "vendor_products", rel)

	row, rel, err = loc.FindByID(ctx, "p-old", []string{"vendor_products", "shop_products"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "shop_products", rel)
}

func TestFindByIDMissIsNotAnError(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)

	row, rel, err := loc.FindByID(context.Background(), "nope", []string{"vendor_products", "shop_products"})
	assert.Nil(t, row)
	assert.Empty(t, rel)
	assert.NoError(t, err)
}

func TestFindByOwnerFirstProductiveRelationWins(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)
	ctx := context.Background()

	// Two rows in the canonical relation, five in the legacy one under the
	// same owner. The productive first relation ends the scan.
	seedProfile(t, st, 42)
	seedVendorProduct(t, st, "a1", 42, "2024-01-01 00:00:00")
	seedVendorProduct(t, st, "a2", 42, "2024-01-02 00:00:00")
	for _, id := range []string{"b1", "b2", "b3", "b4", "b5"} {
		seedShopProduct(t, st, id, "42", "2024-01-03 00:00:00")
	}

	rows, rel, diags := loc.FindByOwner(ctx, ownerNumeric(42, "42"), DefaultTopology().ProductRelations)
	assert.Equal(t, "vendor_products", rel)
	assert.Len(t, rows, 2)
	// The legacy relation was never probed.
	require.Len(t, diags, 1)
	assert.Equal(t, "vendor_products", diags[0].Relation)
}

func TestFindByOwnerFallsThroughToLegacyRelation(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)
	ctx := context.Background()

	seedShopProduct(t, st, "b1", "abc-123", "2024-01-01 00:00:00")
	seedShopProduct(t, st, "b2", "abc-123", "2024-01-02 00:00:00")

	rows, rel, diags := loc.FindByOwner(ctx, models.OwnerRef{Key: "abc-123"}, DefaultTopology().ProductRelations)
	assert.Equal(t, "shop_products", rel)
	assert.Len(t, rows, 2)
	require.Len(t, diags, 2)
	assert.Equal(t, 0, diags[0].Rows)
	assert.Equal(t, 2, diags[1].Rows)
}

func TestFindByOwnerOrdersByRecencyDescending(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)
	ctx := context.Background()

	seedShopProduct(t, st, "older", "k1", "2023-06-01 00:00:00")
	seedShopProduct(t, st, "newest", "k1", "2024-06-01 00:00:00")
	seedShopProduct(t, st, "middle", "k1", "2024-01-01 00:00:00")

	rows, _, _ := loc.FindByOwner(ctx, models.OwnerRef{Key: "k1"}, DefaultTopology().ProductRelations)
	require.Len(t, rows, 3)
	assert.Equal(t, "newest", rows[0]["id"])
	assert.Equal(t, "middle", rows[1]["id"])
	assert.Equal(t, "older", rows[2]["id"])
}

func TestFindByOwnerMergesProbesWithoutDuplicates(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)
	ctx := context.Background()

	// A row matched by both the seller_key and seller_id probes must appear
	// once.
	_, err := st.Insert(ctx, "shop_products", map[string]any{
		"id":         "dup",
		"name":       "dup",
		"seller_key": "k2",
		"seller_id":  "k2",
		"created_at": "2024-01-01 00:00:00",
	})
	require.NoError(t, err)

	rows, _, _ := loc.FindByOwner(ctx, models.OwnerRef{Key: "k2"}, DefaultTopology().ProductRelations)
	assert.Len(t, rows, 1)
}

func TestFindByOwnerEmptyEverywhere(t *testing.T) {
	st := newTestStore(t)
	loc := NewLocator(st)

	rows, rel, diags := loc.FindByOwner(context.Background(), models.OwnerRef{Key: "ghost"}, DefaultTopology().ProductRelations)
	assert.Empty(t, rows)
	assert.Empty(t, rel)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, 0, d.Rows)
		assert.NotEmpty(t, d.ColumnsTried)
	}
}
