package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BazaarDev/bazaar_api/internal/store"
)

// newTestStore opens an in-memory SQLite database shaped like the production
// catalog topology. The strict relation enforces numeric ownership through a
// foreign key; the legacy relation accepts free-form owner keys and has a
// narrower column set.
func newTestStore(t *testing.T) *store.Store {
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
		vendor_no TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
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

	return store.New(db)
}

// seedProfile provisions the owner row the vendor_products foreign key needs.
func seedProfile(t *testing.T, st *store.Store, vendorID int64) {
	t.Helper()
	_, err := st.Insert(context.Background(), "seller_profiles", store.Row{"vendor_id": vendorID})
	require.NoError(t, err)
}

func seedVendorProduct(t *testing.T, st *store.Store, id string, vendorID int64, createdAt string) {
	t.Helper()
	_, err := st.Insert(context.Background(), "vendor_products", store.Row{
		"id":         id,
		"name":       id,
		"vendor_id":  vendorID,
		"created_at": createdAt,
	})
	require.NoError(t, err)
}

func seedShopProduct(t *testing.T, st *store.Store, id, sellerKey, createdAt string) {
	t.Helper()
	_, err := st.Insert(context.Background(), "shop_products", store.Row{
		"id":         id,
		"name":       id,
		"seller_key": sellerKey,
		"created_at": createdAt,
	})
	require.NoError(t, err)
}
