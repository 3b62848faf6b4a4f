package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/repository"
	"github.com/BazaarDev/bazaar_api/internal/store"
)

func newTestService(t *testing.T) (*ProductService, *store.Store) {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`PRAGMA foreign_keys = ON`)
	require.NoError(t, err)

	_, err = db.Exec(`
	CREATE TABLE vendors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		name TEXT,
		email TEXT UNIQUE,
		password_hash TEXT,
		vendor_no TEXT,
		role TEXT DEFAULT 'vendor',
		verified BOOLEAN DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE vendor_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		name TEXT,
		vendor_no TEXT
	);
	CREATE TABLE seller_profiles (
		vendor_id INTEGER PRIMARY KEY,
		display_name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE vendor_products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL,
		original_price REAL,
		discount REAL,
		stock INTEGER,
		vendor_id INTEGER NOT NULL REFERENCES seller_profiles(vendor_id),
		payment_methods TEXT,
		image TEXT,
		description TEXT,
		specifications TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE shop_products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL,
		original_price REAL,
		discount REAL,
		stock INTEGER,
		seller_key TEXT,
		seller_id TEXT,
		payment_methods TEXT,
		image TEXT,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`)
	require.NoError(t, err)

	st := store.New(db)
	topo := repository.DefaultTopology()
	resolver := repository.NewOwnerResolver(st, topo.VendorCandidates, topo.ProfileRelation, nil)
	locator := repository.NewLocator(st)
	writer := repository.NewAdaptiveWriter(st, resolver)

	return NewProductService(st, locator, writer, resolver, topo, nil, 100), st
}

func strptr(s string) *string { return &s }

func TestCreateWithStringOwnerLandsInLegacyRelation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// A non-numeric, unresolvable owner key means the strict relation can
	// never hold the row; the write goes straight to the string-owner one.
	p, err := svc.Create(ctx, "abc-123", &ProductInput{
		Name:          strptr("Mug"),
		Price:         "20",
		OriginalPrice: "20",
		SalePercent:   "10",
	})
	require.NoError(t, err)

	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, 18.0, p.Price)
	assert.Equal(t, 20.0, p.OriginalPrice)
	assert.Equal(t, "abc-123", p.Owner.Key)
	assert.Equal(t, "shop_products", p.Relation)
	assert.NotEmpty(t, p.ID)

	rows, err := st.Select(ctx, "shop_products", store.Filter{}.Eq("seller_key", "abc-123"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 18.0, rows[0]["price"], 1e-9)

	strict, err := st.Select(ctx, "vendor_products", store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, strict)
}

func TestCreateWithNumericOwnerPrefersStrictRelation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "42", &ProductInput{
		Name:  strptr("Lamp"),
		Price: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "vendor_products", p.Relation)
	require.NotNil(t, p.Owner.NumericID)
	assert.Equal(t, int64(42), *p.Owner.NumericID)

	// The missing owner profile was provisioned by the self-heal.
	profiles, err := st.Select(ctx, "seller_profiles", store.Filter{}.Eq("vendor_id", int64(42)))
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestCreateResolvesOwnerKeyThroughVendorTable(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "vendors", store.Row{"id": int64(8), "user_id": int64(900), "name": "Shop"})
	require.NoError(t, err)

	p, err := svc.Create(ctx, "900", &ProductInput{Name: strptr("Desk"), Price: 10})
	require.NoError(t, err)
	// "900" is itself numeric, so it is used directly without resolution.
	require.NotNil(t, p.Owner.NumericID)
	assert.Equal(t, int64(900), *p.Owner.NumericID)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "abc", nil)
	assert.Error(t, err)

	_, err = svc.Create(ctx, "abc", &ProductInput{Name: strptr("  ")})
	assert.Error(t, err)

	_, err = svc.Create(ctx, "", &ProductInput{Name: strptr("x")})
	assert.Error(t, err)
}

func TestGetByIDProbesBothRelations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Mug"), Price: 5})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)
	assert.Equal(t, "shop_products", got.Relation)

	_, err = svc.GetByID(ctx, "ghost")
	assert.Error(t, err)
}

func TestListByOwnerReturnsDiagnosticsOnEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	products, diags, err := svc.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, products)
	require.Len(t, diags, 2)
	assert.Equal(t, 0, diags[0].Rows)
}

func TestUpdateByNonOwnerLeavesRowUnmodified(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Mug"), Price: 20})
	require.NoError(t, err)

	_, err = svc.Update(ctx, models.Actor{ID: "intruder", Role: "vendor"}, created.ID, &ProductInput{
		Name: strptr("Hijacked"),
	})
	require.Error(t, err)

	rows, err := st.Select(ctx, "shop_products", store.Filter{}.Eq("id", created.ID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mug", rows[0]["name"])
}

func TestUpdateByOwnerRepricesWhenDiscountChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{
		Name:          strptr("Mug"),
		OriginalPrice: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, created.Price)

	updated, err := svc.Update(ctx, models.Actor{ID: "abc-123", Role: "vendor"}, created.ID, &ProductInput{
		SalePercent: "25",
	})
	require.NoError(t, err)
	assert.Equal(t, 15.0, updated.Price)
	assert.Equal(t, 20.0, updated.OriginalPrice)
}

func TestUpdateClearingDiscountPersistsNull(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{
		Name:          strptr("Mug"),
		OriginalPrice: 20,
		SalePercent:   "10",
	})
	require.NoError(t, err)
	assert.Equal(t, 18.0, created.Price)
	require.NotNil(t, created.DiscountPercent)

	updated, err := svc.Update(ctx, models.Actor{ID: "abc-123", Role: "vendor"}, created.ID, &ProductInput{
		SalePercent: "",
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Price)
	assert.Nil(t, updated.DiscountPercent)

	// The clear must reach the stored row, not just the returned entity.
	fetched, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, fetched.Price)
	assert.Nil(t, fetched.DiscountPercent)
}

func TestUpdateClearingDescriptionPersistsNull(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{
		Name:        strptr("Mug"),
		Price:       20,
		Description: strptr("ceramic"),
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, models.Actor{ID: "abc-123", Role: "vendor"}, created.ID, &ProductInput{
		Description: strptr(""),
	})
	require.NoError(t, err)

	fetched, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", fetched.Description)
}

func TestUpdateByAdminAllowed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Mug"), Price: 20})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, models.Actor{ID: "1", Role: "admin"}, created.ID, &ProductInput{
		Name: strptr("Curated Mug"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Curated Mug", updated.Name)
}

func TestUpdateNeverRelocatesOrReowns(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Mug"), Price: 20})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, models.Actor{ID: "abc-123", Role: "vendor"}, created.ID, &ProductInput{
		Description: strptr("ceramic"),
	})
	require.NoError(t, err)
	assert.Equal(t, "shop_products", updated.Relation)
	assert.Equal(t, "abc-123", updated.Owner.Key)

	rows, err := st.Select(ctx, "shop_products", store.Filter{}.Eq("id", created.ID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "abc-123", rows[0]["seller_key"])
}

func TestDeleteByOwner(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Mug"), Price: 20})
	require.NoError(t, err)

	err = svc.Delete(ctx, models.Actor{ID: "other", Role: "vendor"}, created.ID)
	assert.Error(t, err)

	err = svc.Delete(ctx, models.Actor{ID: "abc-123", Role: "vendor"}, created.ID)
	require.NoError(t, err)

	rows, err := st.Select(ctx, "shop_products", store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearchSpansBothRelations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "42", &ProductInput{Name: strptr("Coffee Mug")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Mug Rack")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Tea Pot"), Description: strptr("pairs with any mug")})
	require.NoError(t, err)

	got, err := svc.Search(ctx, "mug")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = svc.Search(ctx, "rack")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Mug Rack", got[0].Name)
}

func TestSearchEmptyQueryReturnsEverything(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("One")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "abc-123", &ProductInput{Name: strptr("Two")})
	require.NoError(t, err)

	got, err := svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAuthorize(t *testing.T) {
	id := int64(7)

	assert.NoError(t, authorize(models.Actor{ID: "anyone", Role: "admin"}, models.OwnerRef{Key: "x"}))
	assert.NoError(t, authorize(models.Actor{ID: "7", Role: "vendor"}, models.OwnerRef{NumericID: &id}))
	assert.NoError(t, authorize(models.Actor{ID: "k", Role: "vendor"}, models.OwnerRef{Key: "k"}))
	assert.Error(t, authorize(models.Actor{ID: "8", Role: "vendor"}, models.OwnerRef{NumericID: &id}))
	assert.Error(t, authorize(models.Actor{ID: "", Role: "vendor"}, models.OwnerRef{Key: "k"}))
}
